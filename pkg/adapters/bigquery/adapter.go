// Package bigquery provides the Google BigQuery warehouse adapter.
package bigquery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

const (
	defaultLocation   = "US"
	defaultJobTimeout = 60 * time.Second
)

// Adapter implements core.Adapter for BigQuery. Queries are standard SQL jobs
// run in the configured location.
type Adapter struct {
	logger  *slog.Logger
	connect func(ctx context.Context, c core.BigQueryCredentials) (runner, error)

	mu       sync.RWMutex
	runner   runner
	location string
}

// New creates a new BigQuery adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{logger: logger, connect: newClientRunner}
}

// DataSourceType returns core.TypeBigQuery.
func (a *Adapter) DataSourceType() core.DataSourceType { return core.TypeBigQuery }

// Initialize creates the BigQuery client. No job is run; credentials are
// first exercised by the first query.
func (a *Adapter) Initialize(ctx context.Context, creds core.Credentials) error {
	bq, err := adapter.CredentialsAs[core.BigQueryCredentials](creds)
	if err != nil {
		return err
	}

	a.logger.Debug("creating bigquery client",
		slog.String("project", bq.ProjectID),
		slog.String("location", locationOf(bq)),
		slog.String("dataset", bq.DefaultDataset))

	r, err := a.connect(ctx, bq)
	if err != nil {
		return &core.ClientInitError{Engine: core.TypeBigQuery, Err: err}
	}

	a.mu.Lock()
	prev := a.runner
	a.runner = r
	a.location = locationOf(bq)
	a.mu.Unlock()
	if prev != nil {
		a.closeRunner(prev)
	}
	return nil
}

func (a *Adapter) conn() (runner, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.runner == nil {
		return nil, core.NotConnected(core.TypeBigQuery)
	}
	return a.runner, nil
}

// IsConnected reports whether a client has been created.
func (a *Adapter) IsConnected() bool {
	_, err := a.conn()
	return err == nil
}

// Query runs sql as a standard SQL job. Positional ? parameters are sent as
// named parameters @param0, @param1 and so on.
func (a *Adapter) Query(ctx context.Context, sql string, params []any, maxRows int, timeout time.Duration) (*core.QueryResult, error) {
	r, err := a.conn()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	req := queryRequest{sql: sql, limit: max(maxRows, 0), timeout: timeout}
	if len(params) > 0 {
		req.sql, _ = adapter.RewritePlaceholders(sql, "@")
		req.params = namedParams(params)
	}

	a.logger.Debug("executing query", slog.Int("params", len(params)), slog.Int("max_rows", maxRows))

	ctx, cancel := adapter.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := r.run(ctx, req)
	if err != nil {
		return nil, &core.QueryError{
			Engine:  core.TypeBigQuery,
			Err:     err,
			Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded),
		}
	}
	return toResult(resp, maxRows), nil
}

func namedParams(params []any) []bigquery.QueryParameter {
	out := make([]bigquery.QueryParameter, len(params))
	for i, v := range params {
		out[i] = bigquery.QueryParameter{Name: adapter.ParamName(i), Value: v}
	}
	return out
}

// TestConnection runs adapter.TestQuery and reports whether it succeeded.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	r, err := a.conn()
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, defaultJobTimeout)
	defer cancel()
	if _, err := r.run(ctx, queryRequest{sql: adapter.TestQuery, timeout: defaultJobTimeout}); err != nil {
		a.logger.Debug("connection test failed", slog.String("engine", "bigquery"), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Introspect returns an introspector bound to the current client.
func (a *Adapter) Introspect() (core.Introspector, error) {
	r, err := a.conn()
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	location := a.location
	a.mu.RUnlock()
	return &Introspector{runner: r, location: location, logger: a.logger}, nil
}

// Close releases the client. Close errors are logged, not returned.
func (a *Adapter) Close() error {
	a.mu.Lock()
	r := a.runner
	a.runner = nil
	a.mu.Unlock()
	if r != nil {
		a.closeRunner(r)
	}
	return nil
}

func (a *Adapter) closeRunner(r runner) {
	if err := r.close(); err != nil {
		a.logger.Warn("error closing bigquery client", slog.String("error", err.Error()))
	}
}

// Ensure Adapter implements core.Adapter interface
var _ core.Adapter = (*Adapter)(nil)
