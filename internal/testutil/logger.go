// Package testutil provides logging helpers for tests.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a debug logger that writes through t.Log, so output
// only shows for failing tests or with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(newTLogHandler(t))
}

func newTLogHandler(t testing.TB) slog.Handler {
	return slog.NewTextHandler(tWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug})
}

type tWriter struct{ t testing.TB }

func (w tWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// LogEntry is one captured log call.
type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// LogRecorder captures log entries for assertions. Entries are also
// written to t.Log.
type LogRecorder struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewRecordingLogger returns a logger together with the recorder that
// captures everything logged through it.
func NewRecordingLogger(t testing.TB) (*slog.Logger, *LogRecorder) {
	t.Helper()
	rec := &LogRecorder{}
	return slog.New(&recordingHandler{rec: rec, next: newTLogHandler(t)}), rec
}

// Entries returns a copy of the captured entries.
func (r *LogRecorder) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LogEntry(nil), r.entries...)
}

// Messages returns the messages logged at level or above.
func (r *LogRecorder) Messages(level slog.Level) []string {
	var msgs []string
	for _, e := range r.Entries() {
		if e.Level >= level {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

func (r *LogRecorder) add(e LogEntry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

type recordingHandler struct {
	rec   *LogRecorder
	next  slog.Handler
	attrs []slog.Attr
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := LogEntry{Level: r.Level, Message: r.Message, Attrs: map[string]string{}}
	for _, a := range h.attrs {
		entry.Attrs[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Attrs[a.Key] = a.Value.String()
		return true
	})
	h.rec.add(entry)
	return h.next.Handle(ctx, r)
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{
		rec:   h.rec,
		next:  h.next.WithAttrs(attrs),
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

// WithGroup keeps capturing under flat attribute keys.
func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return &recordingHandler{rec: h.rec, next: h.next.WithGroup(name), attrs: h.attrs}
}
