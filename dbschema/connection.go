// Package dbschema connects to PostgreSQL and reads the exclusion constraints
// and constraint triggers that actually exist in a database.
package dbschema

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver

	"github.com/stokaro/pgconstraints/core/platform"
	"github.com/stokaro/pgconstraints/dbschema/postgres"
	"github.com/stokaro/pgconstraints/dbschema/types"
)

// DatabaseConnection wraps a database handle with its metadata
type DatabaseConnection struct {
	db   *sql.DB
	info types.DBInfo
}

// Connect opens a database/sql handle for a PostgreSQL URL using the pgx
// driver. The handle is not verified; see ConnectToDatabase.
func Connect(dbURL string) (*sql.DB, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	if platform.NormalizeDialect(u.Scheme) != platform.Postgres {
		return nil, fmt.Errorf("%w: %q", platform.ErrUnsupportedDialect, u.Scheme)
	}
	db, err := sql.Open("pgx", removePostgresPoolParams(dbURL))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// ConnectToDatabase connects to a PostgreSQL database and reads its server
// version and current schema.
func ConnectToDatabase(ctx context.Context, dbURL string) (*DatabaseConnection, error) {
	db, err := Connect(dbURL)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	info := types.DBInfo{Dialect: platform.Postgres}
	if err := db.QueryRowContext(ctx, "SELECT current_setting('server_version'), current_schema()").Scan(&info.Version, &info.Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read database info: %w", err)
	}

	return &DatabaseConnection{db: db, info: info}, nil
}

// Info returns the database metadata
func (c *DatabaseConnection) Info() types.DBInfo {
	return c.info
}

// Reader returns a reader for a schema. An empty schema selects the
// connection's current schema.
func (c *DatabaseConnection) Reader(schema string) *postgres.Reader {
	if schema == "" {
		schema = c.info.Schema
	}
	return postgres.NewPostgreSQLReader(c.db, schema)
}

// DB returns the underlying database handle
func (c *DatabaseConnection) DB() *sql.DB {
	return c.db
}

// ExecContext executes a statement
func (c *DatabaseConnection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// Close closes the database connection
func (c *DatabaseConnection) Close() error {
	return c.db.Close()
}

// removePostgresPoolParams drops the pgxpool-only pool_max_conns and
// pool_min_conns parameters, which the database/sql driver would send to the
// server as runtime parameters. Unparseable URLs are returned unchanged.
func removePostgresPoolParams(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || u.RawQuery == "" {
		return dbURL
	}
	q := u.Query()
	if !q.Has("pool_max_conns") && !q.Has("pool_min_conns") {
		return dbURL
	}
	q.Del("pool_max_conns")
	q.Del("pool_min_conns")
	u.RawQuery = q.Encode()
	return strings.TrimSuffix(u.String(), "?")
}
