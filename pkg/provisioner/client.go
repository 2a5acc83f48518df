// Package provisioner runs administrative operations against a PostgreSQL server
// through interchangeable client backends.
package provisioner

import (
	"context"
	"fmt"
	"strings"

	"github.com/kappakkala/pgprovision/pkg/postgres"
	"github.com/kappakkala/pgprovision/pkg/transfer"
)

// Client defines the administrative capabilities every backend provides. Methods return
// the raw driver error; the Sequencer classifies it.
type Client interface {
	// Connect opens a session to database, or to the maintenance database when empty.
	// An open session is closed first.
	Connect(ctx context.Context, database string) error
	// Database returns the database of the open session, or "" when disconnected.
	Database() string
	ListDatabases(ctx context.Context) ([]string, error)
	CreateDatabase(ctx context.Context, name string) error
	DropDatabase(ctx context.Context, name string) error
	// CreateSchema returns a duplicate_schema error when the backend detects an existing schema.
	CreateSchema(ctx context.Context, name string) error
	// DropSchema returns an invalid_schema_name error when the backend detects a missing schema.
	DropSchema(ctx context.Context, name string) error
	EmptyTable(ctx context.Context, schema, table string) error
	DropTable(ctx context.Context, schema, table string) error
	// Exec runs caller supplied SQL text unchanged.
	Exec(ctx context.Context, query string) (int64, error)
	// LoadFrame appends the frame rows to schema.table in a single transaction,
	// optionally truncating the table first.
	LoadFrame(ctx context.Context, schema, table string, frame *transfer.Frame, truncate bool) (int64, error)
	Close() error
}

// Strategy selects a Client backend.
type Strategy string

const (
	// StrategyPQ talks to the server through lib/pq and database/sql.
	StrategyPQ Strategy = "pq"
	// StrategyGorm talks to the server through a gorm engine built from a connection URL.
	StrategyGorm Strategy = "gorm"
)

// ParseStrategy parses a configured strategy name. The empty string selects StrategyPQ.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyPQ, "psycopg", "driver":
		return StrategyPQ, nil
	case StrategyGorm, "sqlalchemy", "engine":
		return StrategyGorm, nil
	default:
		return "", fmt.Errorf("unknown client strategy %q", s)
	}
}

// NewClient returns a disconnected Client for the given strategy.
func NewClient(strategy Strategy, settings postgres.Settings) (Client, error) {
	switch strategy {
	case StrategyPQ, "":
		return NewPQClient(settings), nil
	case StrategyGorm:
		return NewGormClient(settings), nil
	default:
		return nil, fmt.Errorf("unknown client strategy %q", strategy)
	}
}
