package config

import (
	"context"
	"errors"
	"maps"
	"reflect"
	"slices"

	"github.com/leapstack-labs/warehouse/pkg/core"
	"github.com/leapstack-labs/warehouse/pkg/datasource"
)

// Manager is the part of *datasource.DataSource driven by Reconcile.
type Manager interface {
	DataSources() []string
	DataSourceConfig(name string) (core.DataSourceConfig, bool)
	AddDataSource(ctx context.Context, cfg core.DataSourceConfig) error
	UpdateDataSource(ctx context.Context, name string, u datasource.Update) error
	RemoveDataSource(ctx context.Context, name string) error
	SetDefaultDataSource(name string)
}

// Changes lists what Reconcile applied, by warehouse name.
type Changes struct {
	Added   []string
	Updated []string
	Removed []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Reconcile brings m in line with want: warehouses missing from want are
// removed, new ones added and changed ones updated. Every change is
// attempted; failures are joined into the returned error.
func Reconcile(ctx context.Context, m Manager, want []core.DataSourceConfig, defaultName string) (Changes, error) {
	var (
		changes Changes
		errs    []error
	)

	byName := make(map[string]core.DataSourceConfig, len(want))
	for _, cfg := range want {
		byName[cfg.Name] = cfg
	}

	for _, name := range m.DataSources() {
		if _, keep := byName[name]; keep {
			continue
		}
		if err := m.RemoveDataSource(ctx, name); err != nil {
			errs = append(errs, err)
			continue
		}
		changes.Removed = append(changes.Removed, name)
	}

	for _, name := range slices.Sorted(maps.Keys(byName)) {
		cfg := byName[name]
		current, exists := m.DataSourceConfig(name)
		if !exists {
			if err := m.AddDataSource(ctx, cfg); err != nil {
				errs = append(errs, err)
				continue
			}
			changes.Added = append(changes.Added, name)
			continue
		}

		u, changed := diff(current, cfg)
		if !changed {
			continue
		}
		if err := m.UpdateDataSource(ctx, name, u); err != nil {
			errs = append(errs, err)
			continue
		}
		changes.Updated = append(changes.Updated, name)
	}

	m.SetDefaultDataSource(defaultName)
	return changes, errors.Join(errs...)
}

func diff(current, next core.DataSourceConfig) (datasource.Update, bool) {
	var (
		u       datasource.Update
		changed bool
	)
	if !reflect.DeepEqual(current.Credentials, next.Credentials) {
		u.Credentials = next.Credentials
		changed = true
	}
	if (len(current.Config) > 0 || len(next.Config) > 0) && !reflect.DeepEqual(current.Config, next.Config) {
		u.Config = next.Config
		if u.Config == nil {
			u.Config = map[string]any{}
		}
		changed = true
	}
	return u, changed
}
