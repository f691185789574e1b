// Package datasource routes queries and introspection calls to named
// warehouses. Adapters are created lazily on first use and cached until the
// warehouse is removed, updated or the DataSource is closed.
package datasource

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
	"golang.org/x/sync/singleflight"
)

// Options configures a DataSource.
type Options struct {
	DataSources       []core.DataSourceConfig
	DefaultDataSource string
	Logger            *slog.Logger
	// Registry resolves adapter factories. Nil means adapter.Default.
	Registry *adapter.Registry
}

// source is one registered warehouse. adapter is nil until first use.
type source struct {
	cfg     core.DataSourceConfig
	adapter core.Adapter
}

// DataSource manages a set of named warehouses.
//
// The mutex guards the source map only and is never held across network
// I/O. Concurrent first use of a warehouse is collapsed into one connect.
type DataSource struct {
	registry *adapter.Registry
	logger   *slog.Logger
	connects singleflight.Group

	mu          sync.RWMutex
	sources     map[string]*source
	defaultName string
}

// New creates a DataSource. No connections are opened.
func New(opts Options) *DataSource {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registry := opts.Registry
	if registry == nil {
		registry = adapter.Default
	}

	d := &DataSource{
		registry:    registry,
		logger:      logger,
		sources:     make(map[string]*source, len(opts.DataSources)),
		defaultName: opts.DefaultDataSource,
	}
	for _, cfg := range opts.DataSources {
		d.sources[cfg.Name] = &source{cfg: normalize(cfg)}
	}
	return d
}

// normalize fills Type from the credentials when it is unset.
func normalize(cfg core.DataSourceConfig) core.DataSourceConfig {
	if cfg.Type == "" && cfg.Credentials != nil {
		cfg.Type = cfg.Credentials.Type()
	}
	return cfg
}

// resolveRequest picks the warehouse for a query: the requested one, then the
// configured default, then the only registered warehouse.
func (d *DataSource) resolveRequest(requested string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if requested != "" {
		if _, ok := d.sources[requested]; !ok {
			return "", &core.DataSourceNotFoundError{Name: requested, Specified: true}
		}
		return requested, nil
	}
	if d.defaultName != "" {
		if _, ok := d.sources[d.defaultName]; !ok {
			return "", &core.DataSourceNotFoundError{Name: d.defaultName}
		}
		return d.defaultName, nil
	}
	return d.onlyLocked()
}

// resolveName picks the warehouse for introspection and admin calls.
// Existence is checked when the adapter is fetched.
func (d *DataSource) resolveName(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.defaultName != "" {
		return d.defaultName, nil
	}
	return d.onlyLocked()
}

func (d *DataSource) onlyLocked() (string, error) {
	if len(d.sources) == 1 {
		for name := range d.sources {
			return name, nil
		}
	}
	if len(d.sources) == 0 {
		return "", fmt.Errorf("%w: no data sources configured", core.ErrNoDefaultDataSource)
	}
	return "", fmt.Errorf("%w: multiple data sources available, specify one by name", core.ErrNoDefaultDataSource)
}

// getAdapter returns the cached adapter for name, connecting it on first use.
func (d *DataSource) getAdapter(ctx context.Context, name string) (core.Adapter, error) {
	d.mu.RLock()
	src, ok := d.sources[name]
	var a core.Adapter
	if ok {
		a = src.adapter
	}
	d.mu.RUnlock()

	if !ok {
		return nil, &core.DataSourceNotFoundError{Name: name}
	}
	if a != nil {
		return a, nil
	}

	v, err, _ := d.connects.Do(name, func() (any, error) {
		d.mu.RLock()
		existing := src.adapter
		d.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		logger := d.logger.With(slog.String("warehouse", name))
		logger.Debug("connecting adapter", slog.String("type", src.cfg.Type.String()))

		a, err := d.registry.Connect(ctx, src.cfg.Credentials, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create adapter for '%s': %w", name, err)
		}

		d.mu.Lock()
		if d.sources[name] != src {
			d.mu.Unlock()
			d.closeAdapter(name, a)
			return nil, fmt.Errorf("data source '%s' changed while connecting", name)
		}
		src.adapter = a
		d.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(core.Adapter), nil
}

func (d *DataSource) closeAdapter(name string, a core.Adapter) {
	if err := a.Close(); err != nil {
		d.logger.Warn("error closing adapter",
			slog.String("warehouse", name),
			slog.String("error", err.Error()))
	}
}

// DataSources returns the registered warehouse names, sorted.
func (d *DataSource) DataSources() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.sources))
	for name := range d.sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DataSourceConfig returns the configuration registered under name.
func (d *DataSource) DataSourceConfig(name string) (core.DataSourceConfig, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	src, ok := d.sources[name]
	if !ok {
		return core.DataSourceConfig{}, false
	}
	return src.cfg, true
}

// DataSourcesByType returns the configurations of engine t, sorted by name.
func (d *DataSource) DataSourcesByType(t core.DataSourceType) []core.DataSourceConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]core.DataSourceConfig, 0)
	for _, src := range d.sources {
		if src.cfg.Type == t {
			out = append(out, src.cfg)
		}
	}
	slices.SortFunc(out, func(a, b core.DataSourceConfig) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// DefaultDataSource returns the configured default warehouse name, if any.
func (d *DataSource) DefaultDataSource() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.defaultName
}

// SetDefaultDataSource changes the default warehouse. An empty name clears
// it. The name is resolved on each request, so it need not exist yet.
func (d *DataSource) SetDefaultDataSource(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defaultName = name
}
