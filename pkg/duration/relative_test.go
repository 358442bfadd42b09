package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRelative(t *testing.T) {
	anchor := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		time     time.Time
		expected string
	}{
		{"same time", anchor, "now"},
		{"5 days ago", anchor.Add(-5 * Day), "5d ago"},
		{"3 hours ago", anchor.Add(-3 * time.Hour), "3h ago"},
		{"in 2 weeks", anchor.Add(2 * Week), "in 2w"},
		{"in 1 day", anchor.Add(Day), "in 1d"},
		{"1 year ago", anchor.Add(-Year), "1y ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatRelativeFrom(tt.time, anchor)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFormatRelative_UsesNow(t *testing.T) {
	result := FormatRelative(time.Now().Add(-time.Minute))
	assert.Contains(t, result, "ago")
}
