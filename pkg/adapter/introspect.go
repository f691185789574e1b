package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/warehouse/pkg/core"
)

// statsConcurrency bounds concurrent GetColumnStatistics calls in a full snapshot.
const statsConcurrency = 20

// ValidateIntrospectOptions rejects filters that are present but empty.
func ValidateIntrospectOptions(opts *core.IntrospectOptions) error {
	if opts == nil {
		return nil
	}
	if opts.Databases != nil && len(opts.Databases) == 0 {
		return &core.EmptyFilterError{Filter: "database"}
	}
	if opts.Schemas != nil && len(opts.Schemas) == 0 {
		return &core.EmptyFilterError{Filter: "schema"}
	}
	if opts.Tables != nil && len(opts.Tables) == 0 {
		return &core.EmptyFilterError{Filter: "table"}
	}
	return nil
}

// FullIntrospection builds a full snapshot from the individual Introspector
// methods and applies opts. Engines call it from GetFullIntrospection.
//
// Filters match exactly and case-sensitively. A database filter and a schema
// filter intersect. Column statistics are attached per table with bounded
// concurrency; a table whose statistics fail is logged and left without them.
func FullIntrospection(ctx context.Context, in core.Introspector, opts *core.IntrospectOptions, logger *slog.Logger) (*core.IntrospectionResult, error) {
	if err := ValidateIntrospectOptions(opts); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &core.IntrospectOptions{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	databases, err := in.GetDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get databases: %w", err)
	}
	if opts.Databases != nil {
		databases = filter(databases, func(d core.Database) bool {
			return slices.Contains(opts.Databases, d.Name)
		})
	}
	dbNames := make(map[string]bool, len(databases))
	for _, d := range databases {
		dbNames[d.Name] = true
	}

	schemas, err := in.GetSchemas(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get schemas: %w", err)
	}
	if opts.Databases != nil {
		schemas = filter(schemas, func(s core.Schema) bool { return dbNames[s.Database] })
	}
	if opts.Schemas != nil {
		schemas = filter(schemas, func(s core.Schema) bool {
			return slices.Contains(opts.Schemas, s.Name)
		})
		if opts.Databases == nil {
			owners := make(map[string]bool, len(schemas))
			for _, s := range schemas {
				owners[s.Database] = true
			}
			databases = filter(databases, func(d core.Database) bool { return owners[d.Name] })
		}
	}
	schemaKeys := make(map[[2]string]bool, len(schemas))
	for _, s := range schemas {
		schemaKeys[[2]string{s.Database, s.Name}] = true
	}

	tables, err := in.GetTables(ctx, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	if opts.Databases != nil {
		tables = filter(tables, func(t core.Table) bool { return dbNames[t.Database] })
	}
	if opts.Schemas != nil {
		tables = filter(tables, func(t core.Table) bool { return schemaKeys[[2]string{t.Database, t.Schema}] })
	}
	if opts.Tables != nil {
		tables = filter(tables, func(t core.Table) bool { return slices.Contains(opts.Tables, t.Name) })
	}
	tableKeys := make(map[[3]string]bool, len(tables))
	for _, t := range tables {
		tableKeys[[3]string{t.Database, t.Schema, t.Name}] = true
	}

	columns, err := in.GetColumns(ctx, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	columns = filter(columns, func(c core.Column) bool {
		return tableKeys[[3]string{c.Database, c.Schema, c.Table}]
	})

	views, err := in.GetViews(ctx, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get views: %w", err)
	}
	if opts.Databases != nil {
		views = filter(views, func(v core.View) bool { return dbNames[v.Database] })
	}
	if opts.Schemas != nil {
		views = filter(views, func(v core.View) bool { return schemaKeys[[2]string{v.Database, v.Schema}] })
	}

	indexes := []core.Index{}
	if lister, ok := in.(core.IndexLister); ok {
		all, err := lister.GetIndexes(ctx, "", "")
		if err != nil {
			return nil, fmt.Errorf("failed to get indexes: %w", err)
		}
		indexes = filter(all, func(ix core.Index) bool {
			return tableKeys[[3]string{ix.Database, ix.Schema, ix.Table}]
		})
	}

	foreignKeys := []core.ForeignKey{}
	if lister, ok := in.(core.ForeignKeyLister); ok {
		all, err := lister.GetForeignKeys(ctx, "", "")
		if err != nil {
			return nil, fmt.Errorf("failed to get foreign keys: %w", err)
		}
		foreignKeys = filter(all, func(fk core.ForeignKey) bool {
			return tableKeys[[3]string{fk.SourceDatabase, fk.SourceSchema, fk.SourceTable}]
		})
	}

	columns, err = AttachColumnStatistics(ctx, in, tables, columns, logger)
	if err != nil {
		return nil, err
	}

	return &core.IntrospectionResult{
		DataSourceType: in.DataSourceType(),
		Databases:      databases,
		Schemas:        schemas,
		Tables:         tables,
		Columns:        columns,
		Views:          views,
		Indexes:        indexes,
		ForeignKeys:    foreignKeys,
		IntrospectedAt: time.Now(),
	}, nil
}

// AttachColumnStatistics fetches column statistics for every table, at most
// statsConcurrency at a time, and copies them onto the matching columns.
// Per-table failures are logged and skipped; only context cancellation
// aborts the whole operation.
func AttachColumnStatistics(ctx context.Context, in core.Introspector, tables []core.Table, columns []core.Column, logger *slog.Logger) ([]core.Column, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	out := slices.Clone(columns)
	index := make(map[[4]string]int, len(out))
	for i, c := range out {
		index[[4]string{c.Database, c.Schema, c.Table, c.Name}] = i
	}

	stats := make([][]core.ColumnStatistics, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for i, t := range tables {
		g.Go(func() error {
			s, err := in.GetColumnStatistics(gctx, t.Database, t.Schema, t.Name)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("failed to get column statistics",
					slog.String("table", t.Database+"."+t.Schema+"."+t.Name),
					slog.String("error", err.Error()))
				return nil
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("column statistics interrupted: %w", err)
	}

	for i, t := range tables {
		for _, s := range stats[i] {
			j, ok := index[[4]string{t.Database, t.Schema, t.Name, s.ColumnName}]
			if !ok {
				continue
			}
			c := &out[j]
			c.DistinctCount = s.DistinctCount
			c.NullCount = s.NullCount
			c.MinValue = s.MinValue
			c.MaxValue = s.MaxValue
			c.SampleValues = TruncateSampleValues(s.SampleValues, *c)
		}
	}
	return out, nil
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
