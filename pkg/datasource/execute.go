package datasource

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

// ErrCodeQueryExecution is the Response error code for failed queries.
const ErrCodeQueryExecution = "QUERY_EXECUTION_ERROR"

// Request is one query submission.
type Request struct {
	SQL    string
	Params []any
	// Warehouse names the target; empty means the default.
	Warehouse string
	Options   QueryOptions
}

// QueryOptions bounds a query. Zero values mean unlimited rows and the
// engine's default timeout.
type QueryOptions struct {
	MaxRows int
	Timeout time.Duration
}

// ColumnMeta describes one result column.
type ColumnMeta struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Nullable  bool   `json:"nullable"`
	Precision int64  `json:"precision"`
	Scale     int64  `json:"scale"`
	Length    int64  `json:"length"`
}

// Metadata is set when the request asked for a row limit.
type Metadata struct {
	Limited bool `json:"limited"`
	MaxRows int  `json:"maxRows,omitempty"`
}

// ErrorInfo describes a failed query.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the outcome of Execute. Failed queries have Success false and
// Error set; Rows and Columns are then empty.
type Response struct {
	Success      bool             `json:"success"`
	Rows         []map[string]any `json:"rows"`
	Columns      []ColumnMeta     `json:"columns"`
	Warehouse    string           `json:"warehouse"`
	Metadata     *Metadata        `json:"metadata,omitempty"`
	Error        *ErrorInfo       `json:"error,omitempty"`
	RowsAffected int64            `json:"rowsAffected,omitempty"`
	// ExecutionTime is encoded in nanoseconds.
	ExecutionTime time.Duration `json:"executionTime"`
	RequestID     string        `json:"requestId"`
}

// Execute runs req on the resolved warehouse.
//
// Only routing failures (unknown warehouse, no default) are returned as
// errors. Connect and query failures are reported in the Response.
func (d *DataSource) Execute(ctx context.Context, req Request) (*Response, error) {
	name, err := d.resolveRequest(req.Warehouse)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Rows:      []map[string]any{},
		Columns:   []ColumnMeta{},
		Warehouse: name,
		RequestID: uuid.NewString(),
	}
	logger := d.logger.With(slog.String("warehouse", name), slog.String("request_id", resp.RequestID))
	start := time.Now()

	result, err := d.query(ctx, name, req)
	resp.ExecutionTime = time.Since(start)
	if err != nil {
		logger.Warn("query failed", slog.String("error", err.Error()), slog.Duration("elapsed", resp.ExecutionTime))
		resp.Error = &ErrorInfo{Code: ErrCodeQueryExecution, Message: err.Error()}
		return resp, nil
	}

	resp.Success = true
	resp.Rows = result.Rows
	resp.Columns = columnsOf(result.Fields)
	resp.RowsAffected = result.RowsAffected
	if resp.RowsAffected == 0 {
		resp.RowsAffected = int64(result.RowCount)
	}
	if req.Options.MaxRows > 0 {
		resp.Metadata = &Metadata{Limited: result.HasMoreRows, MaxRows: req.Options.MaxRows}
	}

	logger.Debug("query executed",
		slog.Int("rows", result.RowCount),
		slog.Bool("limited", result.HasMoreRows),
		slog.Duration("elapsed", resp.ExecutionTime))
	return resp, nil
}

func (d *DataSource) query(ctx context.Context, name string, req Request) (*core.QueryResult, error) {
	a, err := d.getAdapter(ctx, name)
	if err != nil {
		return nil, err
	}
	return a.Query(ctx, req.SQL, req.Params, req.Options.MaxRows, req.Options.Timeout)
}

func columnsOf(fields []core.FieldMetadata) []ColumnMeta {
	columns := make([]ColumnMeta, len(fields))
	for i, f := range fields {
		c := ColumnMeta{
			Name:      f.Name,
			Type:      f.Type,
			Nullable:  f.Nullable,
			Precision: f.Precision,
			Scale:     f.Scale,
			Length:    f.Length,
		}
		if c.Name == "" {
			c.Name = "unknown"
		}
		if c.Type == "" {
			c.Type = "unknown"
		}
		columns[i] = c
	}
	return columns
}
