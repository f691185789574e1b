// Package redshift provides the Amazon Redshift warehouse adapter.
package redshift

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
	"github.com/lib/pq"
)

const (
	defaultPort             = 5439
	defaultConnectTimeout   = 60 * time.Second
	defaultStatementTimeout = 60 * time.Second

	cursorName = "warehouse_cursor"

	// queryCanceled is the SQLSTATE raised when statement_timeout fires.
	queryCanceled = "57014"
)

// Adapter implements core.Adapter for Redshift.
//
// Limited queries run through a server-side cursor inside a transaction so
// that only maxRows+1 rows ever leave the cluster.
type Adapter struct {
	adapter.BaseSQLAdapter

	open adapter.OpenFunc
}

// New creates a new Redshift adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Engine: core.TypeRedshift, Logger: logger},
	}
}

// Initialize connects to the cluster described by creds.
func (a *Adapter) Initialize(ctx context.Context, creds core.Credentials) error {
	rs, err := adapter.CredentialsAs[core.RedshiftCredentials](creds)
	if err != nil {
		return err
	}

	timeout := rs.ConnectionTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.Logger.Debug("connecting to redshift",
		slog.String("host", rs.Host),
		slog.String("database", rs.DefaultDatabase),
		slog.String("cluster", rs.ClusterIdentifier))

	db, err := a.Open(ctx, a.open, "postgres", buildRedshiftDSN(rs))
	if err != nil {
		return err
	}
	a.SetDB(db)
	return nil
}

// Query runs sql with $n placeholders bound to params. statement_timeout is
// set on the session first so the cluster enforces timeout.
func (a *Adapter) Query(ctx context.Context, sql string, params []any, maxRows int, timeout time.Duration) (*core.QueryResult, error) {
	db, err := a.Conn()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultStatementTimeout
	}
	setTimeout := fmt.Sprintf("SET statement_timeout = %d", timeout.Milliseconds())

	a.Logger.Debug("executing query", slog.Int("params", len(params)), slog.Int("max_rows", maxRows))

	var result *core.QueryResult
	if maxRows > 0 {
		result, err = a.queryCursor(ctx, db, setTimeout, sql, params, maxRows)
	} else {
		result, err = a.queryAll(ctx, db, setTimeout, sql, params)
	}
	if err != nil {
		return nil, a.queryError(ctx, err)
	}
	return result, nil
}

func (a *Adapter) queryAll(ctx context.Context, db *sql.DB, setTimeout, query string, params []any) (*core.QueryResult, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, setTimeout); err != nil {
		return nil, err
	}
	return adapter.QueryRows(ctx, conn, query, params, 0)
}

func (a *Adapter) queryCursor(ctx context.Context, db *sql.DB, setTimeout, query string, params []any, maxRows int) (*core.QueryResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, setTimeout); err != nil {
		return nil, err
	}
	declare := "DECLARE " + cursorName + " NO SCROLL CURSOR FOR " + strings.TrimRight(strings.TrimSpace(query), ";")
	if _, err := tx.ExecContext(ctx, declare, params...); err != nil {
		return nil, err
	}

	fetch := fmt.Sprintf("FETCH FORWARD %d FROM %s", maxRows+1, cursorName)
	result, err := adapter.QueryRows(ctx, tx, fetch, nil, maxRows)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "CLOSE "+cursorName); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
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
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == queryCanceled {
		return &core.QueryError{Engine: a.Engine, Err: err, Timeout: true}
	}
	return a.QueryError(ctx, err)
}

// buildRedshiftDSN constructs a key=value connection string for lib/pq.
// SSL is required unless explicitly disabled.
func buildRedshiftDSN(c core.RedshiftCredentials) string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	timeout := c.ConnectionTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	sslmode := "require"
	if c.SSL != nil && !*c.SSL {
		sslmode = "disable"
	}

	parts := []string{
		"host=" + dsnValue(c.Host),
		"port=" + strconv.Itoa(port),
		"dbname=" + dsnValue(c.DefaultDatabase),
		"sslmode=" + sslmode,
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
