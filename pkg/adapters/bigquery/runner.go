package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/leapstack-labs/warehouse/pkg/core"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// queryRequest is one query job submission.
type queryRequest struct {
	sql     string
	params  []bigquery.QueryParameter
	limit   int // stop after limit+1 rows; 0 reads everything
	timeout time.Duration
}

// queryResponse holds the rows read from a job in schema order.
type queryResponse struct {
	schema bigquery.Schema
	rows   [][]bigquery.Value
}

// runner executes query jobs. clientRunner talks to BigQuery; tests swap in
// a fake.
type runner interface {
	run(ctx context.Context, req queryRequest) (*queryResponse, error)
	project() string
	close() error
}

type clientRunner struct {
	client   *bigquery.Client
	location string
	dataset  string
}

// newClientRunner creates a BigQuery client for creds. An inline service
// account key that is not JSON is treated as a key file path.
func newClientRunner(ctx context.Context, c core.BigQueryCredentials) (runner, error) {
	var opts []option.ClientOption
	switch {
	case c.ServiceAccountKey != "" && json.Valid([]byte(c.ServiceAccountKey)):
		opts = append(opts, option.WithCredentialsJSON([]byte(c.ServiceAccountKey)))
	case c.ServiceAccountKey != "":
		opts = append(opts, option.WithCredentialsFile(c.ServiceAccountKey))
	case c.KeyFilePath != "":
		opts = append(opts, option.WithCredentialsFile(c.KeyFilePath))
	}

	project := c.ProjectID
	if project == "" {
		project = bigquery.DetectProjectID
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, err
	}
	return &clientRunner{client: client, location: locationOf(c), dataset: c.DefaultDataset}, nil
}

func (r *clientRunner) run(ctx context.Context, req queryRequest) (*queryResponse, error) {
	q := r.client.Query(req.sql)
	q.Location = r.location
	q.Parameters = req.params
	q.JobTimeout = req.timeout
	if r.dataset != "" {
		q.DefaultProjectID = r.client.Project()
		q.DefaultDatasetID = r.dataset
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	if req.limit > 0 {
		it.PageInfo().MaxSize = req.limit + 1
	}

	resp := &queryResponse{rows: make([][]bigquery.Value, 0)}
	for req.limit <= 0 || len(resp.rows) <= req.limit {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		resp.rows = append(resp.rows, row)
	}
	resp.schema = it.Schema
	return resp, nil
}

func (r *clientRunner) project() string { return r.client.Project() }

func (r *clientRunner) close() error { return r.client.Close() }

func locationOf(c core.BigQueryCredentials) string {
	if c.Location == "" {
		return defaultLocation
	}
	return c.Location
}
