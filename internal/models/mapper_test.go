package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestMapper() *Mapper {
	return NewMapper("gpt-4o", "gpt-4.1", "gpt-4o-mini")
}

func TestResolveAliases(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		expected  string
	}{
		{"haiku maps to small", "claude-3-haiku-20240307", "gpt-4o-mini"},
		{"haiku alias case-insensitive", "claude-3-5-HAIKU-latest", "gpt-4o-mini"},
		{"sonnet maps to middle", "claude-3-5-sonnet-20241022", "gpt-4.1"},
		{"opus maps to big", "claude-3-opus-20240229", "gpt-4o"},
		{"unknown alias maps to big", "claude-next", "gpt-4o"},
	}

	mapper := newTestMapper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mapper.Resolve(tt.requested))
		})
	}
}

func TestResolvePassthrough(t *testing.T) {
	mapper := newTestMapper()
	for _, model := range []string{"gpt-4o", "o1-preview", "o3-mini", "ep-2024", "doubao-pro", "deepseek-chat"} {
		assert.Equal(t, model, mapper.Resolve(model), "model %s must pass through", model)
	}
}

func TestResolveIdempotentOnPassthrough(t *testing.T) {
	mapper := newTestMapper()
	resolved := mapper.Resolve("claude-3-5-haiku")
	if IsPassthrough(resolved) {
		assert.Equal(t, resolved, mapper.Resolve(resolved))
	}
	assert.Equal(t, "gpt-4o", mapper.Resolve(mapper.Resolve("gpt-4o")))
}

func TestMiddleModelFallsBackToBig(t *testing.T) {
	mapper := NewMapper("gpt-4o", "", "gpt-4o-mini")
	assert.Equal(t, "gpt-4o", mapper.Resolve("claude-3-5-sonnet"))
}

func TestSupportsReasoningEffort(t *testing.T) {
	assert.True(t, SupportsReasoningEffort("o1-preview"))
	assert.True(t, SupportsReasoningEffort("o3-mini"))
	assert.True(t, SupportsReasoningEffort("gpt-5"))
	assert.True(t, SupportsReasoningEffort("deepseek-reasoner"))
	assert.False(t, SupportsReasoningEffort("gpt-4o"))
	assert.False(t, SupportsReasoningEffort("deepseek-chat"))
}
