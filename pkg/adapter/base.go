package adapter

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/warehouse/pkg/core"
)

// TestQuery is the trivial statement used by TestConnection.
const TestQuery = "SELECT 1 as test"

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, TestConnection and DataSourceType implementations.
type BaseSQLAdapter struct {
	Engine core.DataSourceType
	Logger *slog.Logger

	mu sync.RWMutex
	db *sql.DB
}

// Open opens a handle with open (sql.Open when nil) and pings it. The handle is
// closed again if the ping fails. Failures are returned as *core.ClientInitError.
func (b *BaseSQLAdapter) Open(ctx context.Context, open OpenFunc, driverName, dsn string) (*sql.DB, error) {
	if open == nil {
		open = sql.Open
	}
	db, err := open(driverName, dsn)
	if err != nil {
		return nil, &core.ClientInitError{Engine: b.Engine, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &core.ClientInitError{Engine: b.Engine, Err: err}
	}
	return db, nil
}

// SetDB installs the connected handle, closing any previous one.
func (b *BaseSQLAdapter) SetDB(db *sql.DB) {
	b.mu.Lock()
	prev := b.db
	b.db = db
	b.mu.Unlock()
	if prev != nil && prev != db {
		b.closeDB(prev)
	}
}

// Conn returns the connected handle or a NotConnected error.
func (b *BaseSQLAdapter) Conn() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, core.NotConnected(b.Engine)
	}
	return b.db, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.db != nil
}

// Detach removes the handle from the adapter without closing it, leaving the
// adapter disconnected. It returns nil when there is no handle.
func (b *BaseSQLAdapter) Detach() *sql.DB {
	b.mu.Lock()
	defer b.mu.Unlock()
	db := b.db
	b.db = nil
	return db
}

// Close closes the database connection. Close errors are logged, not returned.
func (b *BaseSQLAdapter) Close() error {
	b.mu.Lock()
	db := b.db
	b.db = nil
	b.mu.Unlock()

	if db != nil {
		b.logger().Debug("closing database connection", slog.String("engine", b.Engine.String()))
		b.closeDB(db)
	}
	return nil
}

func (b *BaseSQLAdapter) closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		b.logger().Warn("error closing database connection",
			slog.String("engine", b.Engine.String()),
			slog.String("error", err.Error()))
	}
}

// TestConnection runs TestQuery and reports whether it succeeded.
func (b *BaseSQLAdapter) TestConnection(ctx context.Context) bool {
	db, err := b.Conn()
	if err != nil {
		return false
	}
	rows, err := db.QueryContext(ctx, TestQuery)
	if err != nil {
		b.logger().Debug("connection test failed",
			slog.String("engine", b.Engine.String()),
			slog.String("error", err.Error()))
		return false
	}
	defer func() { _ = rows.Close() }()
	rows.Next()
	return rows.Err() == nil
}

// DataSourceType returns the engine tag.
func (b *BaseSQLAdapter) DataSourceType() core.DataSourceType {
	return b.Engine
}

// QueryError wraps a driver error with the engine name. The error is flagged
// as a timeout when it is, or when ctx expired, since drivers often report an
// expired deadline with their own cancellation error.
func (b *BaseSQLAdapter) QueryError(ctx context.Context, err error) error {
	return &core.QueryError{
		Engine:  b.Engine,
		Err:     err,
		Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded),
	}
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// WithTimeout derives a context bounded by timeout. A non-positive timeout
// leaves ctx unchanged.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
