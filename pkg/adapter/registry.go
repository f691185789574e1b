package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/leapstack-labs/warehouse/pkg/core"
)

// Factory creates an uninitialized adapter. A nil logger means discard.
type Factory func(*slog.Logger) core.Adapter

// Registry maps engine tags to adapter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[core.DataSourceType]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[core.DataSourceType]Factory)}
}

// Default is the process-wide registry populated by engine packages.
// Import pkg/adapters/all to register every supported engine.
var Default = NewRegistry()

// Register adds an adapter factory to the registry.
// Called by adapter implementations in their init() functions.
func (r *Registry) Register(t core.DataSourceType, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = factory
}

// Get retrieves an adapter factory by engine tag.
func (r *Registry) Get(t core.DataSourceType) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[t]
	return f, ok
}

// NewAdapter creates a new, uninitialized adapter for t.
func (r *Registry) NewAdapter(t core.DataSourceType, logger *slog.Logger) (core.Adapter, error) {
	if t == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}

	factory, ok := r.Get(t)
	if !ok {
		return nil, &UnsupportedTypeError{
			Type:      t,
			Available: r.SupportedTypes(),
		}
	}
	return factory(logger), nil
}

// CreateAdapterInstance creates the uninitialized adapter matching creds.Type().
func (r *Registry) CreateAdapterInstance(creds core.Credentials, logger *slog.Logger) (core.Adapter, error) {
	if creds == nil {
		return nil, fmt.Errorf("credentials not specified")
	}
	return r.NewAdapter(creds.Type(), logger)
}

// Connect creates the adapter for creds and initializes it. The adapter is
// closed again when initialization fails.
func (r *Registry) Connect(ctx context.Context, creds core.Credentials, logger *slog.Logger) (core.Adapter, error) {
	a, err := r.CreateAdapterInstance(creds, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Initialize(ctx, creds); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// SupportedTypes returns all registered engine tags (sorted).
func (r *Registry) SupportedTypes() []core.DataSourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]core.DataSourceType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// IsSupported checks if an engine tag is registered.
func (r *Registry) IsSupported(t core.DataSourceType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[t]
	return ok
}

// Register adds a factory to Default.
func Register(t core.DataSourceType, factory Factory) { Default.Register(t, factory) }

// NewAdapter creates an uninitialized adapter from Default.
func NewAdapter(t core.DataSourceType, logger *slog.Logger) (core.Adapter, error) {
	return Default.NewAdapter(t, logger)
}

// CreateAdapterInstance creates the adapter matching creds from Default.
func CreateAdapterInstance(creds core.Credentials, logger *slog.Logger) (core.Adapter, error) {
	return Default.CreateAdapterInstance(creds, logger)
}

// Connect creates and initializes an adapter from Default.
func Connect(ctx context.Context, creds core.Credentials, logger *slog.Logger) (core.Adapter, error) {
	return Default.Connect(ctx, creds, logger)
}

// SupportedTypes lists the engines registered with Default.
func SupportedTypes() []core.DataSourceType { return Default.SupportedTypes() }

// IsSupported reports whether t is registered with Default.
func IsSupported(t core.DataSourceType) bool { return Default.IsSupported(t) }

// UnsupportedTypeError is returned when an unknown engine type is requested.
type UnsupportedTypeError struct {
	Type      core.DataSourceType
	Available []core.DataSourceType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported data source type %q\nAvailable types: %v\nHint: Check the credentials type in warehouses.yaml", e.Type, e.Available)
}

func (e *UnsupportedTypeError) Unwrap() error { return core.ErrUnsupportedDataSourceType }
