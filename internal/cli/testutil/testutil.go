// Package testutil holds assertions shared by the CLI command tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/warehouse/internal/cli/output"
	"github.com/leapstack-labs/warehouse/pkg/datasource"
)

// TestRenderer is a Renderer whose stdout and stderr are captured.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer captures output for mode, rendering as if stdout were a
// terminal when isTTY is set.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	tr := &TestRenderer{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}
	tr.Renderer = output.NewRendererWithTTY(tr.Out, tr.ErrOut, isTTY, mode)
	return tr
}

// NewTestRendererAuto resolves auto mode without a terminal, i.e. markdown.
func NewTestRendererAuto() *TestRenderer { return NewTestRenderer(output.ModeAuto, false) }

// NewTestRendererText renders styled text for a simulated terminal.
func NewTestRendererText() *TestRenderer { return NewTestRenderer(output.ModeText, true) }

// NewTestRendererJSON renders JSON.
func NewTestRendererJSON() *TestRenderer { return NewTestRenderer(output.ModeJSON, false) }

// Output returns what was written to stdout.
func (tr *TestRenderer) Output() string { return tr.Out.String() }

// ErrorOutput returns what was written to stderr.
func (tr *TestRenderer) ErrorOutput() string { return tr.ErrOut.String() }

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes ANSI escape sequences.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// AssertNoANSI fails t if s carries terminal escape sequences.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("output contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks what piping output into a markdown viewer
// relies on: no escape codes, balanced fences, non-empty headers and table
// rows that agree on their column count.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()
	AssertNoANSI(t, md)

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences: %d markers", n)
	}

	pipes := -1
	for i, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") && strings.TrimLeft(line, "# ") == "" {
			t.Errorf("line %d: empty header", i+1)
		}
		if !strings.HasPrefix(line, "|") {
			pipes = -1
			continue
		}
		n := strings.Count(line, "|")
		if pipes >= 0 && n != pipes {
			t.Errorf("line %d: table row has %d separators, previous row had %d: %q", i+1, n, pipes, line)
		}
		pipes = n
	}
}

// DecodeFailedResponse decodes a JSON query response and checks that it
// reports a failure with the given error code.
func DecodeFailedResponse(t *testing.T, data []byte, code string) *datasource.Response {
	t.Helper()
	var resp datasource.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, data)
	}
	if resp.Success {
		t.Fatalf("expected a failed response, got success: %s", data)
	}
	if resp.Error == nil || resp.Error.Code != code {
		t.Fatalf("expected error code %s, got %+v", code, resp.Error)
	}
	return &resp
}
