// Package mysql provides the MySQL warehouse adapter.
package mysql

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

const (
	defaultPort           = 3306
	defaultConnectTimeout = 60 * time.Second
	defaultQueryTimeout   = 60 * time.Second
)

// Adapter implements core.Adapter for MySQL.
//
// The driver has no cursor-level row cap, so results are read in full and
// truncated to maxRows afterwards.
type Adapter struct {
	adapter.BaseSQLAdapter

	open adapter.OpenFunc
}

// New creates a new MySQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Engine: core.TypeMySQL, Logger: logger},
	}
}

// Initialize connects to the server described by creds.
func (a *Adapter) Initialize(ctx context.Context, creds core.Credentials) error {
	my, err := adapter.CredentialsAs[core.MySQLCredentials](creds)
	if err != nil {
		return err
	}

	cfg := buildMySQLConfig(my)
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	a.Logger.Debug("connecting to mysql",
		slog.String("addr", cfg.Addr),
		slog.String("database", cfg.DBName))

	db, err := a.Open(ctx, a.open, "mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	a.SetDB(db)
	return nil
}

// Query runs sql with ? placeholders bound to params, bounded by timeout.
func (a *Adapter) Query(ctx context.Context, sql string, params []any, maxRows int, timeout time.Duration) (*core.QueryResult, error) {
	db, err := a.Conn()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	ctx, cancel := adapter.WithTimeout(ctx, timeout)
	defer cancel()

	a.Logger.Debug("executing query", slog.Int("params", len(params)), slog.Int("max_rows", maxRows))

	result, err := adapter.QueryRows(ctx, db, sql, params, 0)
	if err != nil {
		return nil, a.QueryError(ctx, err)
	}
	return adapter.LimitRows(result, maxRows), nil
}

// Introspect returns an introspector bound to the current connection.
func (a *Adapter) Introspect() (core.Introspector, error) {
	db, err := a.Conn()
	if err != nil {
		return nil, err
	}
	return &Introspector{db: db, logger: a.Logger}, nil
}

// buildMySQLConfig maps credentials onto a driver config.
// TLS is attempted when available unless ssl is set explicitly.
func buildMySQLConfig(c core.MySQLCredentials) *mysql.Config {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = defaultPort
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.DBName = c.DefaultDatabase
	cfg.Timeout = c.ConnectionTimeout
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultConnectTimeout
	}

	switch {
	case c.SSL == nil:
		cfg.TLSConfig = "preferred"
	case *c.SSL:
		cfg.TLSConfig = "skip-verify"
	default:
		cfg.TLSConfig = "false"
	}
	return cfg
}

// Ensure Adapter implements core.Adapter interface
var _ core.Adapter = (*Adapter)(nil)
