// Package router maps bridge endpoints onto the proxy handlers.
package router

import (
	"net/http"

	"github.com/mixaill76/claude_openai_bridge/internal/proxy"
)

type Router struct {
	proxy *proxy.Proxy
}

func New(p *proxy.Proxy) *Router {
	return &Router{proxy: p}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch {
	case req.URL.Path == "/v1/messages" && req.Method == http.MethodPost:
		rt.proxy.HandleMessages(w, req)

	case req.URL.Path == "/v1/messages/count_tokens" && req.Method == http.MethodPost:
		rt.proxy.HandleCountTokens(w, req)

	case req.URL.Path == "/health" && req.Method == http.MethodGet:
		rt.proxy.HandleHealth(w, req)

	case req.URL.Path == "/test-connection" && req.Method == http.MethodGet:
		rt.proxy.HandleTestConnection(w, req)

	case req.URL.Path == "/" && req.Method == http.MethodGet:
		rt.proxy.HandleRoot(w, req)

	case req.URL.Path == "/v1/messages" || req.URL.Path == "/v1/messages/count_tokens":
		proxy.WriteError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")

	default:
		http.NotFound(w, req)
	}
}
