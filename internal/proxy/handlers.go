package proxy

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mixaill76/claude_openai_bridge/internal/config"
	"github.com/mixaill76/claude_openai_bridge/internal/converter"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/openai"
)

// HandleCountTokens serves POST /v1/messages/count_tokens using the chars/4
// heuristic.
func (p *Proxy) HandleCountTokens(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if _, ok := p.authenticate(w, r); !ok {
		p.metrics.RecordRequest("count_tokens", http.StatusUnauthorized, false, time.Since(started))
		return
	}

	body, ok := p.readBody(w, r)
	if !ok {
		return
	}

	var request anthropic.TokenCountRequest
	if err := json.Unmarshal(body, &request); err != nil {
		WriteErrorBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	p.metrics.RecordRequest("count_tokens", http.StatusOK, false, time.Since(started))
	writeJSON(w, map[string]int{"input_tokens": converter.EstimateInputTokens(&request)})
}

// HandleHealth serves GET /health.
func (p *Proxy) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":                       "ok",
		"timestamp":                    strconv.FormatInt(time.Now().Unix(), 10),
		"openai_api_key_configured":    p.cfg.OpenAIAPIKey != "",
		"anthropic_api_key_configured": p.cfg.AnthropicAPIKey != "",
	})
}

// HandleTestConnection serves GET /test-connection: a one-token upstream
// call against the small model.
func (p *Proxy) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	maxTokens := 1

	var connErr string
	switch p.cfg.WireAPI {
	case config.WireAPIResponses:
		request := &openai.ResponsesRequest{
			Model:           p.cfg.SmallModel,
			Input:           []interface{}{openai.InputMessage{Role: openai.RoleUser, Content: "Hello"}},
			MaxOutputTokens: &maxTokens,
			Temperature:     1.0,
		}
		if _, uerr := p.upstream.Responses(r.Context(), request, "connection-test"); uerr != nil {
			connErr = uerr.Message
		}
	default:
		request := &openai.ChatRequest{
			Model:       p.cfg.SmallModel,
			Messages:    []openai.ChatMessage{{Role: openai.RoleUser, Content: "Hello"}},
			MaxTokens:   &maxTokens,
			Temperature: 1.0,
		}
		if _, uerr := p.upstream.ChatCompletion(r.Context(), request, "connection-test"); uerr != nil {
			connErr = uerr.Message
		}
	}

	latencyMS := time.Since(started).Milliseconds()
	if connErr != "" {
		p.log.Error("Connection test failed", "error", connErr, "latency_ms", latencyMS)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":         false,
			"latency_ms": latencyMS,
			"error":      connErr,
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"ok":         true,
		"latency_ms": latencyMS,
	})
}

// HandleRoot serves GET /: a static service descriptor.
func (p *Proxy) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"message": "Claude-to-OpenAI API bridge",
		"status":  "running",
		"config": map[string]interface{}{
			"openai_base_url":              p.cfg.OpenAIBaseURL,
			"wire_api":                     string(p.cfg.WireAPI),
			"openai_api_key_configured":    p.cfg.OpenAIAPIKey != "",
			"anthropic_api_key_configured": p.cfg.AnthropicAPIKey != "",
			"big_model":                    p.cfg.BigModel,
			"middle_model":                 p.cfg.MiddleModel,
			"small_model":                  p.cfg.SmallModel,
		},
		"endpoints": map[string]string{
			"messages":        "/v1/messages",
			"count_tokens":    "/v1/messages/count_tokens",
			"health":          "/health",
			"test_connection": "/test-connection",
		},
	})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
