package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/mixaill76/claude_openai_bridge/internal/converter"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/openai"
)

// scanBufferSize bounds a single upstream SSE line (large tool arguments and
// thinking chunks arrive as one line).
const scanBufferSize = 1024 * 1024

// TranslateChat consumes a chat-wire SSE byte stream and emits the Anthropic
// event stream onto sink.
//
// A dropped upstream connection is not an error for the client: the stream is
// finalized cleanly (synthetic stop reason) and the blocks already emitted
// preserve the partial turn. Only client-side write failures abort.
func TranslateChat(upstream io.Reader, sink Sink, opts Options) (anthropic.Usage, error) {
	t := newTranslator(sink, opts)
	if err := t.sendMessageStart(); err != nil {
		return t.usage, err
	}

	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, 64*1024), scanBufferSize)

	for scanner.Scan() {
		data, ok := ssePayload(scanner.Bytes())
		if !ok {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk openai.StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			t.log.Warn("Skipping malformed upstream stream line", "phase", "stream_parse_skip", "error", err)
			continue
		}

		if err := t.consumeChatChunk(&chunk); err != nil {
			return t.usage, err
		}
	}

	if err := scanner.Err(); err != nil {
		t.log.Error("Upstream stream interrupted", "phase", "upstream_stream_error", "error", err)
	}

	return t.usage, t.finalize()
}

func (t *translator) consumeChatChunk(chunk *openai.StreamChunk) error {
	if chunk.Usage != nil && (chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0) {
		t.usage.InputTokens = chunk.Usage.PromptTokens
		t.usage.OutputTokens = chunk.Usage.CompletionTokens
		t.usage.CacheReadInputTokens = chunk.Usage.PromptTokensDetails.CachedTokens
	}

	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]

	if choice.Delta != nil {
		delta := choice.Delta

		if thinking := converter.ReasoningTextFromMessage(delta.ReasoningContent, delta.Reasoning); thinking != "" {
			if err := t.handleThinkingDelta(thinking); err != nil {
				return err
			}
		}
		if delta.Signature != "" {
			if err := t.handleSignatureDelta(delta.Signature); err != nil {
				return err
			}
		}
		if delta.Content != nil {
			if err := t.handleTextDelta(*delta.Content); err != nil {
				return err
			}
		}
		for _, toolCall := range delta.ToolCalls {
			if err := t.consumeChatToolCall(&toolCall); err != nil {
				return err
			}
		}
	}

	if choice.FinishReason != "" {
		t.stopReason = converter.MapFinishReason(choice.FinishReason)
	}
	return nil
}

// consumeChatToolCall routes one tool_calls delta entry by its upstream
// index field (not array position).
func (t *translator) consumeChatToolCall(toolCall *openai.StreamToolCall) error {
	upstreamIndex := 0
	if toolCall.Index != nil {
		upstreamIndex = *toolCall.Index
	}

	name := ""
	arguments := ""
	if toolCall.Function != nil {
		name = toolCall.Function.Name
		arguments = toolCall.Function.Arguments
	}

	state, err := t.openToolBlock(upstreamIndex, strings.TrimSpace(toolCall.ID), name)
	if err != nil {
		return err
	}
	return t.appendToolArguments(state, arguments)
}

// ssePayload extracts the payload of a "data:" SSE line. Malformed or
// non-UTF-8 lines are skipped.
func ssePayload(line []byte) (string, bool) {
	if !utf8.Valid(line) {
		return "", false
	}
	text := strings.TrimSuffix(string(line), "\r")
	payload, ok := strings.CutPrefix(text, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(payload), true
}

// jsonComplete reports whether the buffered argument fragments form a
// complete JSON value.
func jsonComplete(buffer string) bool {
	return json.Valid([]byte(buffer))
}
