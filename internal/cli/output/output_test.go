package output

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func TestMode(t *testing.T) {
	tests := map[string]OutputMode{
		"":         ModeAuto,
		"auto":     ModeAuto,
		"table":    ModeText,
		"TEXT":     ModeText,
		"md":       ModeMarkdown,
		"markdown": ModeMarkdown,
		" json ":   ModeJSON,
		"yaml":     ModeAuto,
	}
	for in, want := range tests {
		assert.Equal(t, want, Mode(in), "Mode(%q)", in)
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{"auto on tty", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"empty is auto", "", false, ModeMarkdown},
		{"explicit json", ModeJSON, true, ModeJSON},
		{"explicit text piped", ModeText, false, ModeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_PlainOffTerminal(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	r := NewRendererWithTTY(out, errOut, false, ModeText)

	r.Header(1, "Warehouses")
	r.Success("connected")
	r.StatusLine("primary", false, "connection refused")
	r.Warn("careful")

	assert.False(t, ansiPattern.MatchString(out.String()+errOut.String()))
	assert.Contains(t, out.String(), "Warehouses\n")
	assert.Contains(t, out.String(), "✓ connected")
	assert.Contains(t, out.String(), "✗ failed  connection refused")
	assert.Equal(t, "! careful\n", errOut.String())
}

func TestRenderer_MarkdownHeader(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeAuto)

	r.Header(2, "Tables")
	assert.Equal(t, "## Tables\n", out.String())
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Title", FormatHeader(3, "Title"))
	assert.Equal(t, "- **Type:** postgres", FormatKeyValue("Type", "postgres"))
}
