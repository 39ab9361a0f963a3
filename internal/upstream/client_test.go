package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixaill76/claude_openai_bridge/internal/converter/openai"
	"github.com/mixaill76/claude_openai_bridge/internal/testhelpers"
)

func chatBody() *openai.ChatRequest {
	return &openai.ChatRequest{
		Model:       "gpt-4o-mini",
		Messages:    []openai.ChatMessage{{Role: "user", Content: "hi"}},
		Temperature: 1.0,
	}
}

func TestChatCompletionSendsHeaders(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl_1",
			"choices": []map[string]interface{}{{"message": map[string]interface{}{"content": "ok"}, "finish_reason": "stop"}},
		})
	}))
	defer server.Close()

	cfg := testhelpers.NewTestConfig(server.URL)
	cfg.CustomHeaders = map[string]string{"X-GATEWAY": "custom"}
	client := New(cfg, testhelpers.NewTestLogger())

	resp, uerr := client.ChatCompletion(context.Background(), chatBody(), "sess_abc")
	require.Nil(t, uerr)
	assert.Equal(t, "chatcmpl_1", resp.ID)

	assert.Equal(t, "/chat/completions", captured.URL.Path)
	assert.Equal(t, "Bearer sk-test", captured.Header.Get("Authorization"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Equal(t, "custom", captured.Header.Get("X-GATEWAY"))
	assert.Equal(t, "sess_abc", captured.Header.Get("x-session-id"))
}

func TestAzureAPIVersionQueryParam(t *testing.T) {
	var capturedQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "chatcmpl_1", "choices": []interface{}{}})
	}))
	defer server.Close()

	cfg := testhelpers.NewTestConfig(server.URL)
	cfg.AzureAPIVersion = "2024-06-01"
	client := New(cfg, testhelpers.NewTestLogger())

	_, _ = client.ChatCompletion(context.Background(), chatBody(), "")
	assert.Equal(t, "api-version=2024-06-01", capturedQuery)
}

func TestServerErrorMapsTo502(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	client := New(testhelpers.NewTestConfig(server.URL), testhelpers.NewTestLogger())
	_, uerr := client.ChatCompletion(context.Background(), chatBody(), "")

	require.NotNil(t, uerr)
	assert.Equal(t, http.StatusBadGateway, uerr.Status)
	assert.Equal(t, "overloaded", uerr.Message)
}

func TestClientErrorPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate_limit hit"}}`))
	}))
	defer server.Close()

	client := New(testhelpers.NewTestConfig(server.URL), testhelpers.NewTestLogger())
	_, uerr := client.ChatCompletion(context.Background(), chatBody(), "")

	require.NotNil(t, uerr)
	assert.Equal(t, http.StatusTooManyRequests, uerr.Status)
	assert.Contains(t, uerr.Message, "Rate limit exceeded")
}

func TestConnectFailureMapsTo504(t *testing.T) {
	cfg := testhelpers.NewTestConfig("http://127.0.0.1:1")
	client := New(cfg, testhelpers.NewTestLogger())

	_, uerr := client.ChatCompletion(context.Background(), chatBody(), "")
	require.NotNil(t, uerr)
	assert.Equal(t, http.StatusGatewayTimeout, uerr.Status)
}

func TestExtractErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"nested", `{"error":{"message":"nested"}}`, "nested"},
		{"top level", `{"message":"top"}`, "top"},
		{"nested wins", `{"error":{"message":"nested"},"message":"top"}`, "nested"},
		{"non-string ignored", `{"error":{"message":123},"message":"top"}`, "top"},
		{"empty", "   ", "upstream API returned an empty error response"},
		{"raw passthrough", "gateway failed", "gateway failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractErrorMessage([]byte(tt.body)))
		})
	}
}

func TestClassifyKnownFailures(t *testing.T) {
	assert.Contains(t, Classify("invalid_api_key provided"), "OPENAI_API_KEY")
	assert.Contains(t, Classify("model gpt-9 does not exist"), "Model not found")
	assert.Equal(t, "something else", Classify("something else"))
}

func TestResponsesSSEWrappedNonStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"event: response.completed\n" +
				"data: {\"type\":\"response.completed\",\"response\":{\"id\":\"resp_9\",\"status\":\"completed\",\"output\":[]}}\n\n"))
	}))
	defer server.Close()

	client := New(testhelpers.NewTestConfig(server.URL), testhelpers.NewTestLogger())
	resp, uerr := client.Responses(context.Background(), map[string]interface{}{"model": "gpt-4o"}, "")
	require.Nil(t, uerr)
	assert.Equal(t, "resp_9", resp.ID)
}
