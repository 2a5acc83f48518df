package provisioner

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pgsettings "github.com/kappakkala/pgprovision/pkg/postgres"
	"github.com/kappakkala/pgprovision/pkg/transfer"
)

const (
	schemaExistsQuery = "SELECT count(*) FROM information_schema.schemata WHERE schema_name = ?"

	// DefaultBatchSize is the number of rows per INSERT used by the gorm backend.
	DefaultBatchSize = 1000
)

// GormClient is a Client that talks to PostgreSQL through a gorm engine built from a
// connection URL. It introspects the catalog before creating or dropping schemas.
type GormClient struct {
	settings  pgsettings.Settings
	dialector func(url string) gorm.Dialector
	batchSize int

	db       *gorm.DB
	database string
}

var _ Client = &GormClient{}

// NewGormClient returns a disconnected GormClient.
func NewGormClient(settings pgsettings.Settings) *GormClient {
	return &GormClient{
		settings:  settings,
		dialector: openDialector,
		batchSize: DefaultBatchSize,
	}
}

// WithBatchSize sets the number of rows per INSERT used by LoadFrame.
func (c *GormClient) WithBatchSize(n int) *GormClient {
	if n > 0 {
		c.batchSize = n
	}
	return c
}

func openDialector(url string) gorm.Dialector {
	// The simple protocol lets Exec run multi-statement scripts.
	return postgres.New(postgres.Config{
		DSN:                  url,
		PreferSimpleProtocol: true,
	})
}

// Connect opens a session. Statements run without gorm's default transaction, so
// CREATE DATABASE is accepted.
func (c *GormClient) Connect(ctx context.Context, database string) error {
	c.closeSession()

	db, err := gorm.Open(c.dialector(c.settings.URL(database)), &gorm.Config{
		Logger:                 newGormLogger(),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		if db != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
		}
		return errors.Wrapf(err, "connecting to %s", c.settings.Redacted(database))
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "retrieving connection pool")
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			glog.Errorf("Error closing DB: %v", closeErr)
		}
		return errors.Wrapf(err, "connecting to %s", c.settings.Redacted(database))
	}

	c.db = db
	c.database = orMaintenance(database)
	return nil
}

// Database returns the database of the open session.
func (c *GormClient) Database() string {
	return c.database
}

// ListDatabases returns the database names in server order.
func (c *GormClient) ListDatabases(ctx context.Context) ([]string, error) {
	if c.db == nil {
		return nil, ErrNotConnected
	}
	rows, err := c.db.WithContext(ctx).Raw(listDatabasesQuery).Rows()
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
func (c *GormClient) CreateDatabase(ctx context.Context, name string) error {
	return c.exec(ctx, "CREATE DATABASE ?", identifier(name))
}

// DropDatabase issues DROP DATABASE. The session must not be connected to name.
func (c *GormClient) DropDatabase(ctx context.Context, name string) error {
	return c.exec(ctx, "DROP DATABASE ?", identifier(name))
}

// CreateSchema creates the schema unless the catalog already lists it.
func (c *GormClient) CreateSchema(ctx context.Context, name string) error {
	exists, err := c.hasSchema(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return &pgconn.PgError{
			Severity: "ERROR",
			Code:     codeDuplicateSchema,
			Message:  fmt.Sprintf("schema %q already exists", name),
		}
	}
	return c.exec(ctx, "CREATE SCHEMA ?", identifier(name))
}

// DropSchema drops the schema if the catalog lists it.
func (c *GormClient) DropSchema(ctx context.Context, name string) error {
	exists, err := c.hasSchema(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return &pgconn.PgError{
			Severity: "ERROR",
			Code:     codeInvalidSchemaName,
			Message:  fmt.Sprintf("schema %q does not exist", name),
		}
	}
	return c.exec(ctx, "DROP SCHEMA ?", identifier(name))
}

// EmptyTable truncates schema.table.
func (c *GormClient) EmptyTable(ctx context.Context, schema, table string) error {
	return c.exec(ctx, "TRUNCATE ?", tableClause(schema, table))
}

// DropTable drops schema.table if it exists.
func (c *GormClient) DropTable(ctx context.Context, schema, table string) error {
	return c.exec(ctx, "DROP TABLE IF EXISTS ?", tableClause(schema, table))
}

// Exec runs query unchanged. Without bind values gorm passes '?' through as text.
func (c *GormClient) Exec(ctx context.Context, query string) (int64, error) {
	if c.db == nil {
		return 0, ErrNotConnected
	}
	res := c.db.WithContext(ctx).Exec(query)
	return res.RowsAffected, res.Error
}

// LoadFrame inserts the frame rows in batches inside one transaction.
func (c *GormClient) LoadFrame(ctx context.Context, schema, table string, frame *transfer.Frame, truncate bool) (int64, error) {
	if c.db == nil {
		return 0, ErrNotConnected
	}
	if err := frame.Validate(); err != nil {
		return 0, errors.Wrap(err, "invalid frame")
	}
	if frame.Len() == 0 && !truncate {
		return 0, nil
	}

	var loaded int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if truncate {
			if err := tx.Exec("TRUNCATE ?", tableClause(schema, table)).Error; err != nil {
				return err
			}
		}
		if frame.Len() == 0 {
			return nil
		}
		res := tx.Table("?", tableClause(schema, table)).CreateInBatches(frame.Records(), c.batchSize)
		loaded = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	return loaded, nil
}

// Close releases the session. Closing a disconnected client is a no-op.
func (c *GormClient) Close() error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	c.db = nil
	c.database = ""
	if err != nil {
		return errors.Wrap(err, "retrieving connection pool")
	}
	return errors.Wrap(sqlDB.Close(), "closing DB")
}

func (c *GormClient) hasSchema(ctx context.Context, name string) (bool, error) {
	if c.db == nil {
		return false, ErrNotConnected
	}
	var count int64
	if err := c.db.WithContext(ctx).Raw(schemaExistsQuery, name).Row().Scan(&count); err != nil {
		return false, errors.Wrapf(err, "checking if schema %s exists", name)
	}
	return count > 0, nil
}

func (c *GormClient) exec(ctx context.Context, query string, values ...interface{}) error {
	if c.db == nil {
		return ErrNotConnected
	}
	return c.db.WithContext(ctx).Exec(query, values...).Error
}

func (c *GormClient) closeSession() {
	if err := c.Close(); err != nil {
		glog.Errorf("Error closing DB: %v", err)
	}
}

// identifier quotes name as one identifier. gorm's own quoting splits names on dots.
func identifier(name string) clause.Expr {
	return clause.Expr{SQL: pq.QuoteIdentifier(name)}
}

func tableClause(schema, table string) clause.Expr {
	return clause.Expr{SQL: qualifiedName(schema, table)}
}
