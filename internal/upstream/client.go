// Package upstream carries translated requests to the OpenAI-compatible
// endpoint and hands back parsed bodies or raw SSE streams.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/mixaill76/claude_openai_bridge/internal/config"
	"github.com/mixaill76/claude_openai_bridge/internal/converter"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/openai"
)

const (
	pathChatCompletions = "/chat/completions"
	pathResponses       = "/responses"

	maxErrorBodyBytes = 1024 * 1024

	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
	responseHeaderTimeout      = 30 * time.Second
)

// Client is the upstream HTTP client. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	cfg        *config.Config
	log        *slog.Logger
}

// New creates a Client with transport tuning suited to long-lived streams:
// no global timeout (streams can run for minutes), header-phase timeout on
// the transport instead.
func New(cfg *config.Config, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 0,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: responseHeaderTimeout,
				MaxIdleConns:          defaultMaxIdleConns,
				MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
				IdleConnTimeout:       defaultIdleConnTimeout,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cfg: cfg,
		log: log,
	}
}

// ChatCompletion issues a non-streaming /chat/completions call.
func (c *Client) ChatCompletion(ctx context.Context, body interface{}, sessionID string) (*openai.ChatResponse, *Error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.RequestTimeout)*time.Second)
	defer cancel()

	resp, uerr := c.send(ctx, pathChatCompletions, body, sessionID, "non_stream")
	if uerr != nil {
		return nil, uerr
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes*16))
	if err != nil {
		return nil, c.transportError(err, pathChatCompletions)
	}
	var parsed openai.ChatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &Error{
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("failed to parse upstream JSON response: %v", err),
		}
	}
	return &parsed, nil
}

// ChatCompletionStream issues a streaming /chat/completions call and returns
// the raw response; the caller owns the body.
func (c *Client) ChatCompletionStream(ctx context.Context, body interface{}, sessionID string) (*http.Response, *Error) {
	return c.send(ctx, pathChatCompletions, body, sessionID, "stream")
}

// Responses issues a non-streaming /responses call. Some gateways wrap the
// reply in an SSE envelope even for non-streaming requests; both shapes parse.
func (c *Client) Responses(ctx context.Context, body interface{}, sessionID string) (*openai.ResponsesResponse, *Error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.RequestTimeout)*time.Second)
	defer cancel()

	resp, uerr := c.send(ctx, pathResponses, body, sessionID, "non_stream")
	if uerr != nil {
		return nil, uerr
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes*16))
	if err != nil {
		return nil, c.transportError(err, pathResponses)
	}
	parsed, perr := converter.ParseResponsesBody(data, resp.Header.Get("Content-Type"))
	if perr != nil {
		return nil, &Error{
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("failed to parse upstream responses payload: %v", perr),
		}
	}
	return parsed, nil
}

// ResponsesStream issues a streaming /responses call.
func (c *Client) ResponsesStream(ctx context.Context, body interface{}, sessionID string) (*http.Response, *Error) {
	return c.send(ctx, pathResponses, body, sessionID, "stream")
}

func (c *Client) send(ctx context.Context, path string, body interface{}, sessionID, requestKind string) (*http.Response, *Error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Message: fmt.Sprintf("failed to encode upstream request: %v", err)}
	}

	target := c.cfg.OpenAIBaseURL + path
	if c.cfg.AzureAPIVersion != "" {
		target += "?api-version=" + url.QueryEscape(c.cfg.AzureAPIVersion)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Message: fmt.Sprintf("failed to create upstream request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
	for name, value := range c.cfg.CustomHeaders {
		req.Header.Set(name, value)
	}
	if sessionID != "" {
		req.Header.Set("x-session-id", sessionID)
	}

	c.log.Debug("Sending upstream request",
		"phase", "upstream_request_start",
		"request_kind", requestKind,
		"path", path,
		"session_id", sessionID,
		"body_bytes", len(payload),
	)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(err, path)
	}

	c.log.Debug("Received upstream response headers",
		"phase", "upstream_response_headers",
		"request_kind", requestKind,
		"path", path,
		"session_id", sessionID,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	return nil, c.httpError(resp, requestKind, path, sessionID)
}

// transportError maps connect/TLS/timeout failures onto 504.
func (c *Client) transportError(err error, path string) *Error {
	message := "upstream request failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		message = "upstream request timed out"
	case errors.Is(err, context.Canceled):
		message = "upstream request canceled"
	}
	c.log.Warn("Upstream transport failure", "phase", "upstream_transport_error", "path", path, "error", err)
	return &Error{Status: http.StatusGatewayTimeout, Message: fmt.Sprintf("%s: %v", message, err)}
}

// httpError reads the error body and maps the status: 4xx pass through,
// 5xx collapse to 502.
func (c *Client) httpError(resp *http.Response, requestKind, path, sessionID string) *Error {
	defer func() { _ = resp.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if readErr != nil {
		c.log.Warn("Failed to read upstream error response body",
			"phase", "upstream_error_body_read_failed",
			"path", path,
			"error", readErr,
		)
	}

	status := resp.StatusCode
	if status >= 500 {
		status = http.StatusBadGateway
	}

	message := Classify(ExtractErrorMessage(body))
	c.log.Warn("Upstream returned non-success status",
		"phase", "upstream_http_error",
		"request_kind", requestKind,
		"path", path,
		"session_id", sessionID,
		"upstream_status", resp.StatusCode,
		"status", status,
		"body_bytes", len(body),
	)

	return &Error{Status: status, Message: message}
}
