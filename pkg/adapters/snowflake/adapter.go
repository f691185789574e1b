// Package snowflake provides the Snowflake warehouse adapter.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
	"github.com/snowflakedb/gosnowflake"
)

const (
	defaultConnectTimeout = 60 * time.Second
	defaultQueryTimeout   = 60 * time.Second
)

// Adapter implements core.Adapter for Snowflake.
//
// Connections come from a WarmPool and are handed back to it on Close, so a
// short-lived adapter does not pay for a fresh login every time.
type Adapter struct {
	adapter.BaseSQLAdapter

	open adapter.OpenFunc
	pool *WarmPool
	key  string
}

// New creates a new Snowflake adapter backed by the shared warm pool.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Engine: core.TypeSnowflake, Logger: logger},
		pool:           SharedPool(),
	}
}

// Initialize acquires a connection for creds, reusing a warm one when possible.
func (a *Adapter) Initialize(ctx context.Context, creds core.Credentials) error {
	sf, err := adapter.CredentialsAs[core.SnowflakeCredentials](creds)
	if err != nil {
		return err
	}

	cfg, err := buildSnowflakeConfig(sf)
	if err != nil {
		return &core.ClientInitError{Engine: a.Engine, Err: err}
	}
	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return &core.ClientInitError{Engine: a.Engine, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.LoginTimeout)
	defer cancel()

	a.Logger.Debug("connecting to snowflake",
		slog.String("account", sf.AccountID),
		slog.String("warehouse", sf.WarehouseID),
		slog.String("database", sf.DefaultDatabase))

	key := poolKey(sf)
	db, err := a.pool.Acquire(ctx, key, func() (*sql.DB, error) {
		return a.Open(ctx, a.open, "snowflake", dsn)
	})
	if err != nil {
		return err
	}
	a.key = key
	a.SetDB(db)
	return nil
}

// Query runs sql with ? binds. The query races a timer: when the timer wins
// the query context is cancelled, which asks Snowflake to abort the statement,
// and a timeout error is returned without waiting for the driver.
func (a *Adapter) Query(ctx context.Context, sql string, params []any, maxRows int, timeout time.Duration) (*core.QueryResult, error) {
	db, err := a.Conn()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}

	a.Logger.Debug("executing query", slog.Int("params", len(params)), slog.Int("max_rows", maxRows))

	qctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result *core.QueryResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := adapter.QueryRows(qctx, db, sql, params, maxRows)
		done <- outcome{result, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, a.QueryError(ctx, out.err)
		}
		return out.result, nil
	case <-timer.C:
		a.Logger.Warn("snowflake query timed out, cancelling", slog.Duration("timeout", timeout))
		return nil, &core.QueryError{
			Engine:  a.Engine,
			Err:     fmt.Errorf("%w after %s", context.DeadlineExceeded, timeout),
			Timeout: true,
		}
	case <-ctx.Done():
		return nil, a.QueryError(ctx, ctx.Err())
	}
}

// Introspect returns an introspector bound to the current connection.
func (a *Adapter) Introspect() (core.Introspector, error) {
	db, err := a.Conn()
	if err != nil {
		return nil, err
	}
	return &Introspector{db: db, logger: a.Logger}, nil
}

// Close hands the connection back to the warm pool instead of closing it.
func (a *Adapter) Close() error {
	if db := a.Detach(); db != nil {
		a.pool.Release(a.key, db)
	}
	return nil
}

// ConnectionStats reports the state of the pool this adapter draws from.
func (a *Adapter) ConnectionStats() PoolStats {
	return a.pool.Stats()
}

// buildSnowflakeConfig maps credentials onto a driver config. Warehouse,
// database and schema are optional and left to the user's defaults when unset.
func buildSnowflakeConfig(c core.SnowflakeCredentials) (*gosnowflake.Config, error) {
	auth, err := authType(c.Authenticator)
	if err != nil {
		return nil, err
	}
	timeout := c.ConnectionTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	return &gosnowflake.Config{
		Account:       c.AccountID,
		User:          c.Username,
		Password:      c.Password,
		Warehouse:     c.WarehouseID,
		Database:      c.DefaultDatabase,
		Schema:        c.DefaultSchema,
		Role:          c.Role,
		Authenticator: auth,
		LoginTimeout:  timeout,
	}, nil
}

func authType(name string) (gosnowflake.AuthType, error) {
	switch strings.ToLower(name) {
	case "", "snowflake":
		return gosnowflake.AuthTypeSnowflake, nil
	case "oauth":
		return gosnowflake.AuthTypeOAuth, nil
	case "externalbrowser":
		return gosnowflake.AuthTypeExternalBrowser, nil
	case "snowflake_jwt":
		return gosnowflake.AuthTypeJwt, nil
	default:
		return 0, fmt.Errorf("unsupported authenticator %q", name)
	}
}

// Ensure Adapter implements core.Adapter interface
var _ core.Adapter = (*Adapter)(nil)
