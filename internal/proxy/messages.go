package proxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mixaill76/claude_openai_bridge/internal/config"
	"github.com/mixaill76/claude_openai_bridge/internal/converter"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/stream"
	"github.com/mixaill76/claude_openai_bridge/internal/logger"
	"github.com/mixaill76/claude_openai_bridge/internal/upstream"
	"github.com/mixaill76/claude_openai_bridge/internal/usagelog"
)

// translateFunc is either stream.TranslateChat or stream.TranslateResponses.
type translateFunc func(upstreamBody io.Reader, sink stream.Sink, opts stream.Options) (anthropic.Usage, error)

// HandleMessages serves POST /v1/messages.
func (p *Proxy) HandleMessages(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := newRequestID()

	clientAuth, ok := p.authenticate(w, r)
	if !ok {
		p.metrics.RecordRequest("messages", http.StatusUnauthorized, false, time.Since(started))
		return
	}

	body, ok := p.readBody(w, r)
	if !ok {
		return
	}

	var request anthropic.MessagesRequest
	if err := json.Unmarshal(body, &request); err != nil {
		WriteErrorBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if len(request.Messages) == 0 {
		WriteErrorBadRequest(w, "messages must not be empty")
		return
	}

	log := p.log.With("request_id", requestID)
	log.Debug("Received downstream request",
		"phase", "downstream_request_summary",
		"claude_model", request.Model,
		"stream", request.Stream,
		"max_tokens", request.MaxTokens,
		"messages_len", len(request.Messages),
		"has_system", request.System != nil,
		"has_tools", len(request.Tools) > 0,
		"thinking_enabled", request.Thinking.Enabled(),
	)
	if log.Enabled(r.Context(), slog.LevelDebug) {
		log.Debug("Received downstream request (full)",
			"phase", "downstream_request_full",
			"claude_request", logger.TruncateLongFields(string(body), 400),
		)
	}

	estimate := converter.EstimateInputTokens(&anthropic.TokenCountRequest{
		Model:    request.Model,
		Messages: request.Messages,
		System:   request.System,
		Tools:    request.Tools,
	})
	identity, sessionID := p.resolveSession(r, clientAuth, estimate)

	isStream := wantsStream(r, request.Stream)
	switch p.cfg.WireAPI {
	case config.WireAPIResponses:
		p.handleResponsesMessage(w, r, &request, identity, sessionID, isStream, started, requestID, log)
	default:
		p.handleChatMessage(w, r, &request, identity, sessionID, isStream, started, requestID, log)
	}
}

func (p *Proxy) handleChatMessage(
	w http.ResponseWriter,
	r *http.Request,
	request *anthropic.MessagesRequest,
	identity, sessionID string,
	isStream bool,
	started time.Time,
	requestID string,
	log *slog.Logger,
) {
	chatRequest, registry := converter.ClaudeToChat(request, p.cfg, log)

	if isStream {
		chatRequest.EnableStreamUsage()
		ctx, cancel := p.streamContext(r.Context())
		defer cancel()

		resp, uerr := p.upstream.ChatCompletionStream(ctx, chatRequest, sessionID)
		if uerr != nil {
			p.failUpstream(w, uerr, started, true)
			return
		}
		defer func() { _ = resp.Body.Close() }()

		p.runStream(w, resp, request, registry, chatRequest.Model, identity, sessionID, started, requestID, log, stream.TranslateChat)
		return
	}

	resp, uerr := p.upstream.ChatCompletion(r.Context(), chatRequest, sessionID)
	if uerr != nil {
		p.failUpstream(w, uerr, started, false)
		return
	}

	converted, err := converter.ChatToClaude(resp, chatRequest.Model, log)
	if err != nil {
		WriteErrorInternal(w, err.Error())
		return
	}

	p.finishNonStream(w, converted, request, chatRequest.Model, identity, sessionID, started, requestID)
}

func (p *Proxy) handleResponsesMessage(
	w http.ResponseWriter,
	r *http.Request,
	request *anthropic.MessagesRequest,
	identity, sessionID string,
	isStream bool,
	started time.Time,
	requestID string,
	log *slog.Logger,
) {
	responsesRequest, registry := converter.ClaudeToResponses(request, p.cfg, log)

	if isStream {
		responsesRequest.EnableStream()
		ctx, cancel := p.streamContext(r.Context())
		defer cancel()

		resp, uerr := p.upstream.ResponsesStream(ctx, responsesRequest, sessionID)
		if uerr != nil {
			p.failUpstream(w, uerr, started, true)
			return
		}
		defer func() { _ = resp.Body.Close() }()

		p.runStream(w, resp, request, registry, responsesRequest.Model, identity, sessionID, started, requestID, log, stream.TranslateResponses)
		return
	}

	resp, uerr := p.upstream.Responses(r.Context(), responsesRequest, sessionID)
	if uerr != nil {
		p.failUpstream(w, uerr, started, false)
		return
	}

	converted, err := converter.ResponsesToClaude(resp, responsesRequest.Model, log)
	if err != nil {
		WriteErrorInternal(w, err.Error())
		return
	}

	p.finishNonStream(w, converted, request, responsesRequest.Model, identity, sessionID, started, requestID)
}

func (p *Proxy) runStream(
	w http.ResponseWriter,
	resp *http.Response,
	request *anthropic.MessagesRequest,
	registry *converter.ToolRegistry,
	upstreamModel string,
	identity, sessionID string,
	started time.Time,
	requestID string,
	log *slog.Logger,
	translate translateFunc,
) {
	sink, ok := newSSESink(w, p.metrics)
	if !ok {
		p.log.Error("Streaming not supported by the connection")
		WriteErrorInternal(w, "streaming not supported")
		return
	}

	pinger := stream.NewPingingSink(sink, 0)
	defer pinger.Close()

	usage, err := translate(resp.Body, pinger, stream.Options{
		Model:             upstreamModel,
		MessageID:         converter.NewMessageID(),
		ThinkingRequested: request.Thinking.Enabled(),
		Registry:          registry,
		DebugToolIDs:      p.cfg.DebugToolIDMatching,
		Logger:            log,
	})
	if err != nil {
		// Client-side write failure: the connection is gone, nothing to send.
		log.Warn("Client disconnected during streaming", "error", err)
	}

	p.sessions.AddUsage(identity, usage.InputTokens+usage.OutputTokens)
	p.metrics.RecordTokens(usage.InputTokens, usage.OutputTokens)
	p.metrics.RecordRequest("messages", http.StatusOK, true, time.Since(started))
	p.usage.Enqueue(usagelog.Record{
		RequestID:     requestID,
		Endpoint:      "messages",
		ClaudeModel:   request.Model,
		UpstreamModel: upstreamModel,
		SessionID:     sessionID,
		InputTokens:   usage.InputTokens,
		OutputTokens:  usage.OutputTokens,
		Stream:        true,
		Status:        "success",
	})
}

func (p *Proxy) finishNonStream(
	w http.ResponseWriter,
	converted *anthropic.MessagesResponse,
	request *anthropic.MessagesRequest,
	upstreamModel string,
	identity, sessionID string,
	started time.Time,
	requestID string,
) {
	p.sessions.AddUsage(identity, converted.Usage.InputTokens+converted.Usage.OutputTokens)
	p.metrics.RecordTokens(converted.Usage.InputTokens, converted.Usage.OutputTokens)
	p.metrics.RecordRequest("messages", http.StatusOK, false, time.Since(started))
	p.usage.Enqueue(usagelog.Record{
		RequestID:     requestID,
		Endpoint:      "messages",
		ClaudeModel:   request.Model,
		UpstreamModel: upstreamModel,
		SessionID:     sessionID,
		InputTokens:   converted.Usage.InputTokens,
		OutputTokens:  converted.Usage.OutputTokens,
		Stream:        false,
		Status:        "success",
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(converted)
}

func (p *Proxy) failUpstream(w http.ResponseWriter, uerr *upstream.Error, started time.Time, isStream bool) {
	p.metrics.RecordUpstreamError(uerr.Status)
	p.metrics.RecordRequest("messages", uerr.Status, isStream, time.Since(started))
	writeUpstreamError(w, uerr.Status, uerr.Message)
}

// streamContext bounds the whole upstream stream when configured.
func (p *Proxy) streamContext(parent context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StreamRequestTimeout > 0 {
		return context.WithTimeout(parent, time.Duration(p.cfg.StreamRequestTimeout)*time.Second)
	}
	return context.WithCancel(parent)
}
