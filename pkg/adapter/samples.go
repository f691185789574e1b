package adapter

import (
	"strings"

	"github.com/leapstack-labs/warehouse/pkg/core"
)

// Sample limits applied by TruncateSampleValues.
const (
	jsonSampleCount   = 3
	jsonSampleLength  = 100
	normalSampleCount = 20
	normalSampleLen   = 100
	longTextMaxLength = 255
	longTextAvgLength = 100
)

// TruncateSampleValues shortens a comma-separated sample list for display.
// JSON columns keep 3 samples cut near a JSON boundary, long text columns keep
// 3 to 10 shorter samples depending on their average length, and everything
// else keeps 20 samples of at most 100 characters.
func TruncateSampleValues(samples string, col core.Column) string {
	if strings.TrimSpace(samples) == "" {
		return ""
	}

	var values []string
	for _, v := range strings.Split(samples, ",") {
		if strings.TrimSpace(v) != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return ""
	}

	dataType := strings.ToLower(col.DataType)
	switch {
	case strings.Contains(dataType, "json"):
		return truncateJSONSamples(values)
	case isLongTextColumn(dataType, col.MaxLength, values):
		return truncateLongTextSamples(values)
	default:
		return truncateEach(values, normalSampleCount, normalSampleLen)
	}
}

func truncateJSONSamples(values []string) string {
	values = values[:min(len(values), jsonSampleCount)]
	out := make([]string, len(values))
	for i, v := range values {
		if len(v) <= jsonSampleLength {
			out[i] = v
			continue
		}
		cut := v[:jsonSampleLength]
		point := max(strings.LastIndexByte(cut, ','), strings.LastIndexByte(cut, '}'))
		if point > jsonSampleLength/2 {
			out[i] = cut[:point] + "...}"
		} else {
			out[i] = cut + "..."
		}
	}
	return strings.Join(out, ",")
}

func truncateLongTextSamples(values []string) string {
	avg := averageLength(values)
	count, length := 10, 50
	switch {
	case avg > 200:
		count, length = 3, 30
	case avg > 100:
		count = 5
	}
	return truncateEach(values, count, length)
}

func truncateEach(values []string, count, length int) string {
	values = values[:min(len(values), count)]
	out := make([]string, len(values))
	for i, v := range values {
		if len(v) > length {
			out[i] = v[:length] + "..."
		} else {
			out[i] = v
		}
	}
	return strings.Join(out, ",")
}

func isLongTextColumn(dataType string, maxLength int64, values []string) bool {
	if !strings.Contains(dataType, "text") && !strings.Contains(dataType, "char") {
		return false
	}
	if maxLength > longTextMaxLength {
		return true
	}
	return averageLength(values) > longTextAvgLength
}

func averageLength(values []string) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0
	for _, v := range values {
		total += len(v)
	}
	return float64(total) / float64(len(values))
}
