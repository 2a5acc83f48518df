package provisioner

import (
	"context"
	"database/sql"

	"github.com/golang/glog"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kappakkala/pgprovision/pkg/postgres"
	"github.com/kappakkala/pgprovision/pkg/transfer"
)

const listDatabasesQuery = "SELECT datname FROM pg_database"

// PQClient is a Client that talks to PostgreSQL through lib/pq and database/sql.
// The connection pool is pinned to a single connection so a client owns exactly one session.
type PQClient struct {
	settings postgres.Settings
	open     func(driverName, dsn string) (*sql.DB, error)

	db       *sql.DB
	database string
}

var _ Client = &PQClient{}

// NewPQClient returns a disconnected PQClient.
func NewPQClient(settings postgres.Settings) *PQClient {
	return &PQClient{
		settings: settings,
		open:     sql.Open,
	}
}

// Connect opens a session. database/sql runs every statement outside of an explicit
// transaction in autocommit mode, so CREATE DATABASE is accepted.
func (c *PQClient) Connect(ctx context.Context, database string) error {
	c.closeSession()

	db, err := c.open("postgres", c.settings.DSN(database))
	if err != nil {
		return errors.Wrap(err, "opening DB")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			glog.Errorf("Error closing DB: %v", closeErr)
		}
		return errors.Wrapf(err, "connecting to %s", c.settings.Redacted(database))
	}

	c.db = db
	c.database = orMaintenance(database)
	return nil
}

// Database returns the database of the open session.
func (c *PQClient) Database() string {
	return c.database
}

// ListDatabases returns the database names in server order.
func (c *PQClient) ListDatabases(ctx context.Context) ([]string, error) {
	if c.db == nil {
		return nil, ErrNotConnected
	}
	rows, err := c.db.QueryContext(ctx, listDatabasesQuery)
	if err != nil {
		return nil, errors.Wrap(err, "listing databases")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scanning database name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "listing databases")
	}
	return names, nil
}

// CreateDatabase issues CREATE DATABASE.
func (c *PQClient) CreateDatabase(ctx context.Context, name string) error {
	return c.exec(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name))
}

// DropDatabase issues DROP DATABASE. The session must not be connected to name.
func (c *PQClient) DropDatabase(ctx context.Context, name string) error {
	return c.exec(ctx, "DROP DATABASE "+pq.QuoteIdentifier(name))
}

// CreateSchema relies on IF NOT EXISTS.
func (c *PQClient) CreateSchema(ctx context.Context, name string) error {
	return c.exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(name))
}

// DropSchema relies on IF EXISTS.
func (c *PQClient) DropSchema(ctx context.Context, name string) error {
	return c.exec(ctx, "DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(name))
}

// EmptyTable truncates schema.table.
func (c *PQClient) EmptyTable(ctx context.Context, schema, table string) error {
	return c.exec(ctx, "TRUNCATE "+qualifiedName(schema, table))
}

// DropTable drops schema.table if it exists.
func (c *PQClient) DropTable(ctx context.Context, schema, table string) error {
	return c.exec(ctx, "DROP TABLE IF EXISTS "+qualifiedName(schema, table))
}

// Exec runs query unchanged and returns the rows affected by its last statement.
func (c *PQClient) Exec(ctx context.Context, query string) (int64, error) {
	if c.db == nil {
		return 0, ErrNotConnected
	}
	glog.V(1).Infof("Executing SQL: %s", query)
	res, err := c.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

// LoadFrame copies the frame rows with COPY FROM STDIN inside one transaction.
func (c *PQClient) LoadFrame(ctx context.Context, schema, table string, frame *transfer.Frame, truncate bool) (loaded int64, err error) {
	if c.db == nil {
		return 0, ErrNotConnected
	}
	if err := frame.Validate(); err != nil {
		return 0, errors.Wrap(err, "invalid frame")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "beginning PostgreSQL transaction")
	}
	defer func() {
		switch err {
		case nil:
			err = errors.Wrap(tx.Commit(), "committing copy")
			if err != nil {
				loaded = 0
			}
		default:
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				glog.Errorf("Error rolling back transaction: %v", rollbackErr)
			}
		}
	}()

	if truncate {
		if _, err = tx.ExecContext(ctx, "TRUNCATE "+qualifiedName(schema, table)); err != nil {
			return 0, err
		}
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(schema, table, frame.Columns...))
	if err != nil {
		return 0, err
	}
	for _, row := range frame.Rows {
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			_ = stmt.Close()
			return 0, err
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return 0, err
	}
	if err = stmt.Close(); err != nil {
		return 0, err
	}
	return int64(frame.Len()), nil
}

// Close releases the session. Closing a disconnected client is a no-op.
func (c *PQClient) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	c.database = ""
	return errors.Wrap(err, "closing DB")
}

func (c *PQClient) exec(ctx context.Context, query string) error {
	if c.db == nil {
		return ErrNotConnected
	}
	glog.V(1).Infof("Executing SQL: %s", query)
	_, err := c.db.ExecContext(ctx, query)
	return err
}

func (c *PQClient) closeSession() {
	if err := c.Close(); err != nil {
		glog.Errorf("Error closing DB: %v", err)
	}
}

func qualifiedName(schema, table string) string {
	if schema == "" {
		return pq.QuoteIdentifier(table)
	}
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

func orMaintenance(database string) string {
	if database == "" {
		return postgres.MaintenanceDatabase
	}
	return database
}
