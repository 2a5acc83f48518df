package provisioner

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/kappakkala/pgprovision/pkg/metrics"
	"github.com/kappakkala/pgprovision/pkg/transfer"
)

// Operation names used in results, logs and metrics.
const (
	OpConnect        = "connect"
	OpListDatabases  = "list_databases"
	OpCreateDatabase = "create_database"
	OpDropDatabase   = "drop_database"
	OpCreateSchema   = "create_schema"
	OpDropSchema     = "drop_schema"
	OpEmptyTable     = "empty_table"
	OpDropTable      = "drop_table"
	OpRunScript      = "run_script"
	OpLoadFrame      = "load_frame"
	OpClose          = "close"
)

// Mode controls how failed operations are reported to the caller.
type Mode int

const (
	// ModeStrict returns an error for every failed operation.
	ModeStrict Mode = iota
	// ModeLenient logs failed operations and never returns an error. The Result still
	// carries the failure.
	ModeLenient
)

// Sequencer runs administrative operations through a Client, one at a time.
// It is not safe for concurrent use.
type Sequencer struct {
	client Client
	mode   Mode
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithMode sets the error reporting mode.
func WithMode(mode Mode) Option {
	return func(s *Sequencer) {
		s.mode = mode
	}
}

// NewSequencer returns a Sequencer that owns client.
func NewSequencer(client Client, opts ...Option) *Sequencer {
	s := &Sequencer{client: client, mode: ModeStrict}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the database of the open session, or "" when disconnected.
func (s *Sequencer) Database() string {
	return s.client.Database()
}

// Connect opens a session to database, replacing (and closing) any open session.
// An empty database selects the maintenance database.
func (s *Sequencer) Connect(ctx context.Context, database string) (Result, error) {
	return s.run(OpConnect, orMaintenance(database), ClassifyStrict, func() (int64, error) {
		return 0, s.client.Connect(ctx, database)
	})
}

// ListDatabases returns all database names in server order.
func (s *Sequencer) ListDatabases(ctx context.Context) ([]string, error) {
	var names []string
	_, err := s.run(OpListDatabases, s.client.Database(), ClassifyStrict, func() (int64, error) {
		var err error
		names, err = s.client.ListDatabases(ctx)
		return int64(len(names)), err
	})
	return names, err
}

// CreateDatabase creates database name. An existing database is reported as StatusAlreadyExists.
func (s *Sequencer) CreateDatabase(ctx context.Context, name string) (Result, error) {
	return s.run(OpCreateDatabase, name, Classify, func() (int64, error) {
		return 0, s.client.CreateDatabase(ctx, name)
	})
}

// DropDatabase reconnects to the maintenance database and drops database name.
// A missing database is reported as StatusNotFound.
func (s *Sequencer) DropDatabase(ctx context.Context, name string) (Result, error) {
	return s.run(OpDropDatabase, name, Classify, func() (int64, error) {
		if err := s.client.Connect(ctx, ""); err != nil {
			return 0, &sessionError{err: err}
		}
		return 0, s.client.DropDatabase(ctx, name)
	})
}

// CreateSchema creates schema name in the connected database.
func (s *Sequencer) CreateSchema(ctx context.Context, name string) (Result, error) {
	return s.run(OpCreateSchema, name, Classify, func() (int64, error) {
		return 0, s.client.CreateSchema(ctx, name)
	})
}

// DropSchema drops schema name from the connected database if it exists.
func (s *Sequencer) DropSchema(ctx context.Context, name string) (Result, error) {
	return s.run(OpDropSchema, name, Classify, func() (int64, error) {
		return 0, s.client.DropSchema(ctx, name)
	})
}

// EmptyTable removes all rows from schema.table and keeps its structure.
func (s *Sequencer) EmptyTable(ctx context.Context, schema, table string) (Result, error) {
	return s.run(OpEmptyTable, tableName(schema, table), Classify, func() (int64, error) {
		return 0, s.client.EmptyTable(ctx, schema, table)
	})
}

// DropTable drops schema.table if it exists.
func (s *Sequencer) DropTable(ctx context.Context, schema, table string) (Result, error) {
	return s.run(OpDropTable, tableName(schema, table), Classify, func() (int64, error) {
		return 0, s.client.DropTable(ctx, schema, table)
	})
}

// PrepareSchema creates database, connects to it and creates schema inside it, in that
// order. It stops at the first failed step and returns the results of the steps it ran.
func (s *Sequencer) PrepareSchema(ctx context.Context, database, schema string) ([]Result, error) {
	steps := []func() (Result, error){
		func() (Result, error) { return s.CreateDatabase(ctx, database) },
		func() (Result, error) { return s.Connect(ctx, database) },
		func() (Result, error) { return s.CreateSchema(ctx, schema) },
	}

	results := make([]Result, 0, len(steps))
	for _, step := range steps {
		r, err := step()
		results = append(results, r)
		if !r.OK() {
			return results, err
		}
	}
	return results, nil
}

// RunScript executes caller supplied SQL text in the connected database. The text is
// neither validated nor parameterized.
func (s *Sequencer) RunScript(ctx context.Context, query string) (Result, error) {
	return s.run(OpRunScript, s.client.Database(), ClassifyStrict, func() (int64, error) {
		return s.client.Exec(ctx, query)
	})
}

// LoadFrame bulk-loads frame into schema.table, emptying the table first when truncate is set.
func (s *Sequencer) LoadFrame(ctx context.Context, schema, table string, frame *transfer.Frame, truncate bool) (Result, error) {
	target := tableName(schema, table)
	r, err := s.run(OpLoadFrame, target, ClassifyStrict, func() (int64, error) {
		return s.client.LoadFrame(ctx, schema, table, frame, truncate)
	})
	metrics.AddRowsLoaded(target, r.Affected)
	return r, err
}

// Close releases the session. Closing twice is a no-op.
func (s *Sequencer) Close() error {
	target := s.client.Database()
	if target == "" {
		target = "session"
	}
	_, err := s.run(OpClose, target, ClassifyStrict, func() (int64, error) {
		return 0, s.client.Close()
	})
	return err
}

func (s *Sequencer) run(operation, target string, classify Classifier, fn func() (int64, error)) (Result, error) {
	start := time.Now()
	affected, err := fn()
	r := classifyResult(operation, target, err, classify)
	r.Affected = affected
	metrics.ObserveOperation(operation, string(r.Status), time.Since(start))
	return r, s.report(r)
}

func (s *Sequencer) report(r Result) error {
	if r.OK() {
		glog.Infof("%s", r)
		return nil
	}
	if s.mode == ModeLenient {
		glog.Errorf("%s", r)
		return nil
	}
	return errors.Wrapf(r.Err, "%s %s", r.Operation, r.Target)
}

// tableName renders schema.table for results and metrics.
func tableName(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}
