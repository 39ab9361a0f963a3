package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixaill76/claude_openai_bridge/internal/auth"
	"github.com/mixaill76/claude_openai_bridge/internal/monitoring"
	"github.com/mixaill76/claude_openai_bridge/internal/proxy"
	"github.com/mixaill76/claude_openai_bridge/internal/session"
	"github.com/mixaill76/claude_openai_bridge/internal/testhelpers"
	"github.com/mixaill76/claude_openai_bridge/internal/upstream"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	upstreamServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"chatcmpl_1","choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	t.Cleanup(upstreamServer.Close)

	cfg := testhelpers.NewTestConfig(upstreamServer.URL)
	log := testhelpers.NewTestLogger()
	sessions, err := session.NewManager(cfg.SessionTTLMinSecs, cfg.SessionTTLMaxSecs, cfg.SessionCleanupIntervalSecs, log)
	require.NoError(t, err)

	return New(proxy.New(cfg, log, upstream.New(cfg, log), sessions, auth.NewGate(""), nil, monitoring.New(false), nil))
}

func TestRoutes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodPost, "/v1/messages", `{"model":"claude-3-haiku","messages":[{"role":"user","content":"hi"}],"max_tokens":8}`, http.StatusOK},
		{http.MethodPost, "/v1/messages/count_tokens", `{"model":"m","messages":[{"role":"user","content":"hi"}]}`, http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/v1/messages", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
