package logger

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.input), "level %q", tt.input)
	}
}

func TestTruncateLongFieldsKeepsShortValues(t *testing.T) {
	body := `{"model":"gpt-4o","messages":[{"role":"user","content":"short"}]}`
	assert.JSONEq(t, body, TruncateLongFields(body, 100))
}

func TestTruncateLongFieldsTruncatesData(t *testing.T) {
	long := strings.Repeat("A", 500)
	body := `{"messages":[{"content":[{"type":"image","source":{"data":"` + long + `"}}]}]}`

	truncated := TruncateLongFields(body, 100)
	assert.Contains(t, truncated, "truncated")
	assert.Less(t, len(truncated), len(body))
}

func TestTruncateLongFieldsNonJSONPassthrough(t *testing.T) {
	assert.Equal(t, "not json", TruncateLongFields("not json", 10))
}
