package converter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixaill76/claude_openai_bridge/internal/converter/openai"
	"github.com/mixaill76/claude_openai_bridge/internal/testhelpers"
)

func parseResponsesResponse(t *testing.T, payload string) *openai.ResponsesResponse {
	t.Helper()
	var response openai.ResponsesResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &response))
	return &response
}

func TestResponsesToClaudeMessageOutput(t *testing.T) {
	response := parseResponsesResponse(t, `{
		"id": "resp_1",
		"status": "completed",
		"output": [{
			"type": "message",
			"content": [{"type": "output_text", "text": "hello"}]
		}],
		"usage": {"input_tokens": 3, "output_tokens": 5}
	}`)

	converted, err := ResponsesToClaude(response, "gpt-4o", testhelpers.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, "end_turn", converted.StopReason)
	assert.Equal(t, 3, converted.Usage.InputTokens)
	assert.Equal(t, 5, converted.Usage.OutputTokens)
	require.Len(t, converted.Content, 1)
	assert.Equal(t, "hello", *converted.Content[0].Text)
}

func TestResponsesToClaudeFunctionCall(t *testing.T) {
	response := parseResponsesResponse(t, `{
		"id": "resp_1",
		"status": "completed",
		"output": [{
			"type": "function_call",
			"call_id": "call_9",
			"name": "get_time",
			"arguments": "{\"tz\":\"UTC\"}"
		}]
	}`)

	converted, err := ResponsesToClaude(response, "gpt-4o", testhelpers.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, "tool_use", converted.StopReason)
	require.Len(t, converted.Content, 1)
	assert.Equal(t, "tool_use", converted.Content[0].Type)
	assert.Equal(t, "call_9", converted.Content[0].ID)
	assert.JSONEq(t, `{"tz":"UTC"}`, string(converted.Content[0].Input))
}

func TestResponsesToClaudeReasoningSummary(t *testing.T) {
	response := parseResponsesResponse(t, `{
		"id": "resp_1",
		"status": "completed",
		"output": [
			{"type": "reasoning", "summary": [{"text": "thought"}]},
			{"type": "message", "content": [{"type": "output_text", "text": "answer"}]}
		]
	}`)

	converted, err := ResponsesToClaude(response, "gpt-4o", testhelpers.NewTestLogger())
	require.NoError(t, err)

	require.Len(t, converted.Content, 2)
	assert.Equal(t, "thinking", converted.Content[0].Type)
	assert.Equal(t, "thought", *converted.Content[0].Thinking)
	assert.Equal(t, "answer", *converted.Content[1].Text)
}

func TestResponsesToClaudeIncompleteMaxTokens(t *testing.T) {
	response := parseResponsesResponse(t, `{
		"id": "resp_1",
		"status": "incomplete",
		"incomplete_details": {"reason": "max_output_tokens"},
		"output": [{"type": "message", "content": [{"type": "output_text", "text": "trunc"}]}]
	}`)

	converted, err := ResponsesToClaude(response, "gpt-4o", testhelpers.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "max_tokens", converted.StopReason)
}

func TestResponsesToClaudeOutputTextFallback(t *testing.T) {
	response := parseResponsesResponse(t, `{
		"id": "resp_1",
		"status": "completed",
		"output": [{"type": "reasoning", "summary": []}],
		"output_text": "fallback text"
	}`)

	converted, err := ResponsesToClaude(response, "gpt-4o", testhelpers.NewTestLogger())
	require.NoError(t, err)
	require.Len(t, converted.Content, 1)
	assert.Equal(t, "fallback text", *converted.Content[0].Text)
}

func TestParseResponsesBodyPlainJSON(t *testing.T) {
	body := []byte(`{"id":"resp_1","status":"completed","output":[]}`)
	parsed, err := ParseResponsesBody(body, "application/json")
	require.NoError(t, err)
	assert.Equal(t, "resp_1", parsed.ID)
}

func TestParseResponsesBodySSEWrapped(t *testing.T) {
	body := []byte("event: response.created\n" +
		"data: {\"type\":\"response.created\",\"response\":{\"id\":\"resp_a\",\"status\":\"in_progress\",\"output\":[]}}\n\n" +
		"event: response.completed\n" +
		"data: {\"type\":\"response.completed\",\"response\":{\"id\":\"resp_a\",\"status\":\"completed\",\"output\":[]}}\n\n" +
		"data: [DONE]\n\n")

	parsed, err := ParseResponsesBody(body, "text/event-stream")
	require.NoError(t, err)
	assert.Equal(t, "resp_a", parsed.ID)
	assert.Equal(t, "completed", parsed.Status)
}

func TestParseResponsesBodyRejectsGarbage(t *testing.T) {
	_, err := ParseResponsesBody([]byte("not json"), "text/plain")
	assert.Error(t, err)
}
