package bigquery

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/bigquery"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

type fakeReply struct {
	resp *queryResponse
	err  error
}

// fakeRunner replays canned replies in order and records every request.
type fakeRunner struct {
	mu       sync.Mutex
	replies  []fakeReply
	requests []queryRequest
	closed   bool
	closeErr error
}

func (f *fakeRunner) run(ctx context.Context, req queryRequest) (*queryResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		f.mu.Unlock()
		return nil, errors.New("unexpected query: " + req.sql)
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	f.mu.Unlock()

	if errors.Is(reply.err, context.DeadlineExceeded) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if reply.err != nil {
		return nil, reply.err
	}
	resp := *reply.resp
	if req.limit > 0 && len(resp.rows) > req.limit+1 {
		resp.rows = resp.rows[:req.limit+1]
	}
	return &resp, nil
}

func (f *fakeRunner) project() string { return "test-project" }

func (f *fakeRunner) close() error {
	f.closed = true
	return f.closeErr
}

func (f *fakeRunner) reply(schema bigquery.Schema, rows ...[]bigquery.Value) *fakeRunner {
	if rows == nil {
		rows = [][]bigquery.Value{}
	}
	f.replies = append(f.replies, fakeReply{resp: &queryResponse{schema: schema, rows: rows}})
	return f
}

func (f *fakeRunner) fail(err error) *fakeRunner {
	f.replies = append(f.replies, fakeReply{err: err})
	return f
}

// newFakeAdapter returns an initialized adapter backed by f.
func newFakeAdapter(f *fakeRunner, creds core.BigQueryCredentials) (*Adapter, error) {
	adp := New(nil)
	adp.connect = func(context.Context, core.BigQueryCredentials) (runner, error) { return f, nil }
	return adp, adp.Initialize(context.Background(), creds)
}
