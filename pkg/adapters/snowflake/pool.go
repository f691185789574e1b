package snowflake

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/leapstack-labs/warehouse/pkg/core"
)

// PoolStats reports warm pool activity.
type PoolStats struct {
	HasWarmConnection bool      `json:"hasWarmConnection"`
	InUse             int       `json:"inUse"`
	Reuses            int64     `json:"reuses"`
	Opens             int64     `json:"opens"`
	WarmSince         time.Time `json:"warmSince,omitzero"`
}

// WarmPool parks at most one idle connection so that a later adapter with the
// same credentials skips the Snowflake login round trip.
type WarmPool struct {
	logger *slog.Logger

	mu        sync.Mutex
	key       string
	idle      *sql.DB
	warmSince time.Time
	inUse     int
	reuses    int64
	opens     int64
}

var (
	sharedOnce sync.Once
	shared     *WarmPool
)

// SharedPool returns the process-wide pool used by adapters by default.
func SharedPool() *WarmPool {
	sharedOnce.Do(func() { shared = NewWarmPool(nil) })
	return shared
}

// Cleanup closes the connection parked in the shared pool.
func Cleanup() {
	SharedPool().Cleanup()
}

// NewWarmPool creates an empty pool.
func NewWarmPool(logger *slog.Logger) *WarmPool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WarmPool{logger: logger}
}

// Acquire hands out the parked connection when it was opened for key and
// still answers a ping. Otherwise open is called.
func (p *WarmPool) Acquire(ctx context.Context, key string, open func() (*sql.DB, error)) (*sql.DB, error) {
	p.mu.Lock()
	var idle *sql.DB
	if p.idle != nil && p.key == key {
		idle = p.idle
		p.idle, p.key = nil, ""
		p.warmSince = time.Time{}
	}
	p.mu.Unlock()

	if idle != nil {
		if err := idle.PingContext(ctx); err == nil {
			p.mu.Lock()
			p.reuses++
			p.inUse++
			p.mu.Unlock()
			p.logger.Debug("reusing warm snowflake connection")
			return idle, nil
		}
		p.logger.Debug("warm snowflake connection is stale, reconnecting")
		p.close(idle)
	}

	db, err := open()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.opens++
	p.inUse++
	p.mu.Unlock()
	return db, nil
}

// Release returns db to the pool. It is parked when the slot is free and
// closed otherwise.
func (p *WarmPool) Release(key string, db *sql.DB) {
	p.mu.Lock()
	if p.inUse > 0 {
		p.inUse--
	}
	if p.idle == nil {
		p.idle, p.key = db, key
		p.warmSince = time.Now()
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.close(db)
}

// Cleanup closes the parked connection, if any.
func (p *WarmPool) Cleanup() {
	p.mu.Lock()
	idle := p.idle
	p.idle, p.key = nil, ""
	p.warmSince = time.Time{}
	p.mu.Unlock()

	if idle != nil {
		p.close(idle)
	}
}

// Reset closes the parked connection and zeroes the counters.
func (p *WarmPool) Reset() {
	p.Cleanup()
	p.mu.Lock()
	p.inUse, p.reuses, p.opens = 0, 0, 0
	p.mu.Unlock()
}

// Stats returns a snapshot of pool counters.
func (p *WarmPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		HasWarmConnection: p.idle != nil,
		InUse:             p.inUse,
		Reuses:            p.reuses,
		Opens:             p.opens,
		WarmSince:         p.warmSince,
	}
}

func (p *WarmPool) close(db *sql.DB) {
	if err := db.Close(); err != nil {
		p.logger.Warn("error closing snowflake connection", slog.String("error", err.Error()))
	}
}

// poolKey fingerprints the credentials a connection was opened with.
func poolKey(c core.SnowflakeCredentials) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		c.AccountID, c.Username, c.Password, c.WarehouseID,
		c.DefaultDatabase, c.DefaultSchema, c.Role, c.Authenticator,
	}, "\x00")))
	return hex.EncodeToString(sum[:])
}
