// Package postgres provides the PostgreSQL warehouse adapter.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

const (
	defaultPort             = 5432
	defaultConnectTimeout   = 60 * time.Second
	defaultStatementTimeout = 60 * time.Second

	// queryCanceled is the SQLSTATE raised when statement_timeout fires.
	queryCanceled = "57014"
)

// Adapter implements core.Adapter for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter

	open adapter.OpenFunc
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Engine: core.TypePostgres, Logger: logger},
	}
}

// Initialize connects to the server described by creds.
func (a *Adapter) Initialize(ctx context.Context, creds core.Credentials) error {
	pg, err := adapter.CredentialsAs[core.PostgresCredentials](creds)
	if err != nil {
		return err
	}
	if pg.DefaultDatabase == "" {
		return &core.ClientInitError{Engine: a.Engine, Err: errors.New("database name is required")}
	}

	timeout := pg.ConnectionTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.Logger.Debug("connecting to postgres",
		slog.String("host", pg.Host),
		slog.String("database", pg.DefaultDatabase))

	db, err := a.Open(ctx, a.open, "pgx", buildPostgresDSN(pg))
	if err != nil {
		return err
	}
	a.SetDB(db)
	return nil
}

// Query runs sql on a pinned session after setting statement_timeout, so the
// server enforces the timeout. At most maxRows rows are returned.
func (a *Adapter) Query(ctx context.Context, sql string, params []any, maxRows int, timeout time.Duration) (*core.QueryResult, error) {
	db, err := a.Conn()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultStatementTimeout
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, a.queryError(ctx, err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET statement_timeout = %d", timeout.Milliseconds())); err != nil {
		return nil, a.queryError(ctx, err)
	}

	a.Logger.Debug("executing query", slog.Int("params", len(params)), slog.Int("max_rows", maxRows))

	result, err := adapter.QueryRows(ctx, conn, sql, params, maxRows)
	if err != nil {
		return nil, a.queryError(ctx, err)
	}
	return result, nil
}

// Introspect returns an introspector bound to the current connection.
func (a *Adapter) Introspect() (core.Introspector, error) {
	db, err := a.Conn()
	if err != nil {
		return nil, err
	}
	return &Introspector{db: db, logger: a.Logger}, nil
}

// queryError flags server-side statement timeouts as timeouts.
func (a *Adapter) queryError(ctx context.Context, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == queryCanceled {
		return &core.QueryError{Engine: a.Engine, Err: err, Timeout: true}
	}
	return a.QueryError(ctx, err)
}

// buildPostgresDSN constructs a key=value PostgreSQL connection string.
func buildPostgresDSN(c core.PostgresCredentials) string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}

	port := c.Port
	if port == 0 {
		port = defaultPort
	}

	timeout := c.ConnectionTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	parts := []string{
		"host=" + dsnValue(host),
		"port=" + strconv.Itoa(port),
		"dbname=" + dsnValue(c.DefaultDatabase),
		"sslmode=" + sslMode(c),
		"connect_timeout=" + strconv.Itoa(max(1, int(timeout.Seconds()))),
	}
	if c.Username != "" {
		parts = append(parts, "user="+dsnValue(c.Username))
	}
	if c.Password != "" {
		parts = append(parts, "password="+dsnValue(c.Password))
	}
	if c.DefaultSchema != "" {
		parts = append(parts, "search_path="+dsnValue(c.DefaultSchema))
	}
	return strings.Join(parts, " ")
}

// sslMode defaults to prefer: encrypt when the server offers it, never verify.
func sslMode(c core.PostgresCredentials) string {
	switch {
	case c.SSLMode != "":
		return c.SSLMode
	case c.SSL == nil:
		return "prefer"
	case *c.SSL:
		return "require"
	default:
		return "disable"
	}
}

// dsnValue quotes a DSN value when it is empty or contains spaces, quotes or backslashes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Ensure Adapter implements core.Adapter interface
var _ core.Adapter = (*Adapter)(nil)
