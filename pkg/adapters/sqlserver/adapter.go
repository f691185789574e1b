// Package sqlserver provides the Microsoft SQL Server warehouse adapter.
package sqlserver

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // registers the "sqlserver" database/sql driver
	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

const (
	defaultPort           = 1433
	defaultConnectTimeout = 60 * time.Second
	defaultRequestTimeout = 60 * time.Second
)

// Adapter implements core.Adapter for SQL Server.
//
// Positional ? placeholders are rewritten to @param0, @param1, ... and bound
// by name. Limited queries stream: once maxRows+1 rows have been read the
// request context is cancelled so the driver abandons the rest of the result.
type Adapter struct {
	adapter.BaseSQLAdapter

	open           adapter.OpenFunc
	requestTimeout time.Duration
}

// New creates a new SQL Server adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Engine: core.TypeSQLServer, Logger: logger},
		requestTimeout: defaultRequestTimeout,
	}
}

// Initialize connects to the server described by creds.
func (a *Adapter) Initialize(ctx context.Context, creds core.Credentials) error {
	ms, err := adapter.CredentialsAs[core.SQLServerCredentials](creds)
	if err != nil {
		return err
	}

	timeout := ms.ConnectionTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.Logger.Debug("connecting to sqlserver",
		slog.String("server", ms.Server),
		slog.String("database", ms.DefaultDatabase))

	db, err := a.Open(ctx, a.open, "sqlserver", buildSQLServerDSN(ms))
	if err != nil {
		return err
	}
	if ms.RequestTimeout > 0 {
		a.requestTimeout = ms.RequestTimeout
	}
	a.SetDB(db)
	return nil
}

// Query runs sql with ? placeholders bound to params as @param0.. named
// arguments. A positive timeout overrides the configured request timeout.
func (a *Adapter) Query(ctx context.Context, sql string, params []any, maxRows int, timeout time.Duration) (*core.QueryResult, error) {
	db, err := a.Conn()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = a.requestTimeout
	}

	query, n := adapter.RewritePlaceholders(sql, "@")
	a.Logger.Debug("executing query",
		slog.Int("placeholders", n),
		slog.Int("params", len(params)),
		slog.Int("max_rows", maxRows))

	ctx, cancel := adapter.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, query, adapter.NamedArgs(params)...)
	if err != nil {
		return nil, a.QueryError(ctx, err)
	}

	result, err := adapter.ReadRows(rows, maxRows)
	if err == nil && result.HasMoreRows {
		// Stop the server streaming the remainder before draining on close.
		cancel()
	}
	_ = rows.Close()
	if err != nil {
		return nil, a.QueryError(ctx, err)
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

// buildSQLServerDSN constructs a sqlserver:// URL. Encryption is on and the
// server certificate is verified unless the credentials say otherwise.
func buildSQLServerDSN(c core.SQLServerCredentials) string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	timeout := c.ConnectionTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	encrypt := true
	if c.Encrypt != nil {
		encrypt = *c.Encrypt
	}
	trust := false
	if c.TrustServerCertificate != nil {
		trust = *c.TrustServerCertificate
	}

	q := url.Values{}
	if c.DefaultDatabase != "" {
		q.Set("database", c.DefaultDatabase)
	}
	q.Set("encrypt", strconv.FormatBool(encrypt))
	q.Set("trustservercertificate", strconv.FormatBool(trust))
	q.Set("connection timeout", strconv.Itoa(max(1, int(timeout.Seconds()))))

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     net.JoinHostPort(c.Server, strconv.Itoa(port)),
		RawQuery: q.Encode(),
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u.String()
}

// Ensure Adapter implements core.Adapter interface
var _ core.Adapter = (*Adapter)(nil)
