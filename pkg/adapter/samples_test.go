package adapter

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/warehouse/pkg/core"
	"github.com/stretchr/testify/assert"
)

func repeatSamples(n int, value string) string {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = value
	}
	return strings.Join(vals, ",")
}

func TestTruncateSampleValues(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, TruncateSampleValues("", core.Column{DataType: "text"}))
		assert.Empty(t, TruncateSampleValues("  ", core.Column{DataType: "text"}))
		assert.Empty(t, TruncateSampleValues(",,", core.Column{DataType: "text"}))
	})

	t.Run("normal column keeps 20 samples", func(t *testing.T) {
		got := TruncateSampleValues(repeatSamples(30, "7"), core.Column{DataType: "integer"})
		assert.Len(t, strings.Split(got, ","), 20)
	})

	t.Run("normal column cuts at 100 characters", func(t *testing.T) {
		long := strings.Repeat("x", 150)
		got := TruncateSampleValues(long, core.Column{DataType: "uuid"})
		assert.Equal(t, strings.Repeat("x", 100)+"...", got)
	})

	t.Run("json keeps 3 samples", func(t *testing.T) {
		got := TruncateSampleValues(repeatSamples(5, "{}"), core.Column{DataType: "jsonb"})
		assert.Equal(t, "{},{},{}", got)
	})

	t.Run("json cuts at a boundary", func(t *testing.T) {
		// A single sample with no commas: only the closing brace is a boundary.
		value := "{" + strings.Repeat("a", 70) + "}" + strings.Repeat("b", 60)
		got := TruncateSampleValues(value, core.Column{DataType: "json"})
		assert.Equal(t, "{"+strings.Repeat("a", 70)+"...}", got)
	})

	t.Run("json without boundary gets ellipsis", func(t *testing.T) {
		value := strings.Repeat("z", 120)
		got := TruncateSampleValues(value, core.Column{DataType: "json"})
		assert.Equal(t, strings.Repeat("z", 100)+"...", got)
	})

	t.Run("long text by max length", func(t *testing.T) {
		col := core.Column{DataType: "character varying", MaxLength: 1000}
		got := TruncateSampleValues(repeatSamples(15, strings.Repeat("w", 60)), col)
		parts := strings.Split(got, ",")
		assert.Len(t, parts, 10)
		assert.Equal(t, strings.Repeat("w", 50)+"...", parts[0])
	})

	t.Run("long text by average length", func(t *testing.T) {
		col := core.Column{DataType: "text"}
		got := TruncateSampleValues(repeatSamples(8, strings.Repeat("m", 150)), col)
		parts := strings.Split(got, ",")
		assert.Len(t, parts, 5)
		assert.Equal(t, strings.Repeat("m", 50)+"...", parts[0])
	})

	t.Run("very long text", func(t *testing.T) {
		col := core.Column{DataType: "text"}
		got := TruncateSampleValues(repeatSamples(8, strings.Repeat("q", 250)), col)
		parts := strings.Split(got, ",")
		assert.Len(t, parts, 3)
		assert.Equal(t, strings.Repeat("q", 30)+"...", parts[0])
	})
}
