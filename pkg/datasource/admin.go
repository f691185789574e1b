package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/warehouse/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Update changes a registered warehouse. Zero fields are left unchanged.
type Update struct {
	Type        core.DataSourceType
	Credentials core.Credentials
	Config      map[string]any
}

// AddDataSource registers cfg and connects it. On connect failure the
// registration is rolled back.
func (d *DataSource) AddDataSource(ctx context.Context, cfg core.DataSourceConfig) error {
	cfg = normalize(cfg)
	src := &source{cfg: cfg}

	d.mu.Lock()
	if _, exists := d.sources[cfg.Name]; exists {
		d.mu.Unlock()
		return &core.DuplicateDataSourceError{Name: cfg.Name}
	}
	d.sources[cfg.Name] = src
	d.mu.Unlock()

	if _, err := d.getAdapter(ctx, cfg.Name); err != nil {
		d.mu.Lock()
		if d.sources[cfg.Name] == src {
			delete(d.sources, cfg.Name)
		}
		d.mu.Unlock()
		return fmt.Errorf("failed to add data source '%s': %w", cfg.Name, err)
	}

	d.logger.Info("data source added", slog.String("warehouse", cfg.Name), slog.String("type", cfg.Type.String()))
	return nil
}

// RemoveDataSource closes and deregisters name. Unknown names are ignored.
func (d *DataSource) RemoveDataSource(_ context.Context, name string) error {
	d.mu.Lock()
	src, ok := d.sources[name]
	delete(d.sources, name)
	var a core.Adapter
	if ok {
		a = src.adapter
		src.adapter = nil
	}
	d.mu.Unlock()

	if a != nil {
		d.closeAdapter(name, a)
	}
	if ok {
		d.logger.Info("data source removed", slog.String("warehouse", name))
	}
	return nil
}

// UpdateDataSource applies u to name. A type or credentials change drops the
// live adapter and reconnects; if that fails the previous configuration is
// restored and the error returned.
func (d *DataSource) UpdateDataSource(ctx context.Context, name string, u Update) error {
	reconnect := u.Type != "" || u.Credentials != nil

	d.mu.Lock()
	prev, ok := d.sources[name]
	if !ok {
		d.mu.Unlock()
		return &core.DataSourceNotFoundError{Name: name}
	}
	if !reconnect {
		if u.Config != nil {
			prev.cfg.Config = u.Config
		}
		d.mu.Unlock()
		return nil
	}

	cfg := prev.cfg
	if u.Credentials != nil {
		cfg.Credentials = u.Credentials
		cfg.Type = u.Credentials.Type()
	}
	if u.Type != "" {
		cfg.Type = u.Type
	}
	if u.Config != nil {
		cfg.Config = u.Config
	}
	next := &source{cfg: cfg}
	d.sources[name] = next
	old := prev.adapter
	prev.adapter = nil
	d.mu.Unlock()

	if old != nil {
		d.closeAdapter(name, old)
	}

	if _, err := d.getAdapter(ctx, name); err != nil {
		d.mu.Lock()
		if d.sources[name] == next {
			d.sources[name] = &source{cfg: prev.cfg}
		}
		d.mu.Unlock()
		return fmt.Errorf("failed to update data source '%s': %w", name, err)
	}

	d.logger.Info("data source updated", slog.String("warehouse", name))
	return nil
}

// TestDataSource reports whether name can be connected and answers a test
// query. It never fails.
func (d *DataSource) TestDataSource(ctx context.Context, name string) bool {
	a, err := d.getAdapter(ctx, name)
	if err != nil {
		d.logger.Debug("connection test failed", slog.String("warehouse", name), slog.String("error", err.Error()))
		return false
	}
	return a.TestConnection(ctx)
}

// TestAllDataSources tests every registered warehouse concurrently.
func (d *DataSource) TestAllDataSources(ctx context.Context) map[string]bool {
	names := d.DataSources()

	var (
		mu      sync.Mutex
		results = make(map[string]bool, len(names))
		g       errgroup.Group
	)
	for _, name := range names {
		g.Go(func() error {
			ok := d.TestDataSource(ctx, name)
			mu.Lock()
			results[name] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Close closes every live adapter concurrently. Configurations are kept, so
// the DataSource reconnects on next use.
func (d *DataSource) Close(_ context.Context) error {
	d.mu.Lock()
	live := make(map[string]core.Adapter)
	for name, src := range d.sources {
		if src.adapter != nil {
			live[name] = src.adapter
			src.adapter = nil
		}
	}
	d.mu.Unlock()

	var g errgroup.Group
	for name, a := range live {
		g.Go(func() error {
			d.closeAdapter(name, a)
			return nil
		})
	}
	return g.Wait()
}
