package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/mixaill76/claude_openai_bridge/internal/converter"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/openai"
)

// responsesContext resolves upstream tool identities to one integer key.
// Events key tool calls by output_index, call_id, or item_id depending on
// the vendor; all three map onto the same slot.
type responsesContext struct {
	byCallID  map[string]int
	byItemID  map[string]int
	nextIndex int
}

func newResponsesContext() *responsesContext {
	return &responsesContext{
		byCallID: make(map[string]int),
		byItemID: make(map[string]int),
	}
}

func (c *responsesContext) resolve(event *openai.ResponsesStreamEvent) int {
	if event.OutputIndex != nil {
		index := *event.OutputIndex
		if index+1 > c.nextIndex {
			c.nextIndex = index + 1
		}
		c.remember(event, index)
		return index
	}
	if callID := eventCallID(event); callID != "" {
		if index, ok := c.byCallID[callID]; ok {
			return index
		}
	}
	if event.ItemID != "" {
		if index, ok := c.byItemID[event.ItemID]; ok {
			return index
		}
	}

	index := c.nextIndex
	c.nextIndex++
	c.remember(event, index)
	return index
}

func (c *responsesContext) remember(event *openai.ResponsesStreamEvent, index int) {
	if callID := eventCallID(event); callID != "" {
		c.byCallID[callID] = index
	}
	if event.ItemID != "" {
		c.byItemID[event.ItemID] = index
	}
	if event.Item != nil && event.Item.ID != "" {
		c.byItemID[event.Item.ID] = index
	}
}

func eventCallID(event *openai.ResponsesStreamEvent) string {
	if event.CallID != "" {
		return event.CallID
	}
	if event.Item != nil && event.Item.CallID != "" {
		return event.Item.CallID
	}
	return ""
}

// TranslateResponses consumes a responses-wire SSE byte stream and emits the
// Anthropic event stream onto sink. Failure semantics match TranslateChat.
func TranslateResponses(upstream io.Reader, sink Sink, opts Options) (anthropic.Usage, error) {
	t := newTranslator(sink, opts)
	if err := t.sendMessageStart(); err != nil {
		return t.usage, err
	}

	ctx := newResponsesContext()
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

		var event openai.ResponsesStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			t.log.Warn("Skipping malformed upstream stream line", "phase", "stream_parse_skip", "error", err)
			continue
		}

		done, err := t.consumeResponsesEvent(&event, ctx)
		if err != nil {
			return t.usage, err
		}
		if done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		t.log.Error("Upstream stream interrupted", "phase", "upstream_stream_error", "error", err)
	}

	return t.usage, t.finalize()
}

func (t *translator) consumeResponsesEvent(event *openai.ResponsesStreamEvent, ctx *responsesContext) (bool, error) {
	switch event.Type {
	case "response.output_text.delta", "response.refusal.delta":
		text, _ := event.DeltaText()
		return false, t.handleTextDelta(text)

	case "response.reasoning.delta", "response.reasoning_text.delta",
		"response.reasoning_summary.delta", "response.reasoning_summary_text.delta":
		if text, ok := event.DeltaText(); ok {
			return false, t.handleThinkingDelta(text)
		}
		if text := converter.ExtractReasoningText(event.Delta); text != "" {
			return false, t.handleThinkingDelta(text)
		}
		return false, nil

	case "response.output_item.added":
		if event.Item == nil || event.Item.Type != "function_call" {
			return false, nil
		}
		state, err := t.openResponsesToolBlock(event, ctx)
		if err != nil {
			return false, err
		}
		if arguments := rawToArgumentsString(event.Item.Arguments); arguments != "" {
			return false, t.appendToolArguments(state, arguments)
		}
		return false, nil

	case "response.function_call_arguments.delta":
		state, err := t.openResponsesToolBlock(event, ctx)
		if err != nil {
			return false, err
		}
		text, _ := event.DeltaText()
		return false, t.appendToolArguments(state, text)

	case "response.function_call_arguments.done":
		state, err := t.openResponsesToolBlock(event, ctx)
		if err != nil {
			return false, err
		}
		if state.emitted {
			return false, nil
		}
		state.pending = rawToArgumentsString(event.Arguments)
		state.totalArgBytes = len(state.pending)
		return false, t.flushToolArgumentsIfComplete(state)

	case "response.completed":
		t.consumeResponsesCompleted(event)
		return true, nil

	case "response.failed", "error":
		// The Anthropic SSE contract has no error event: log and close the
		// stream cleanly, the blocks already emitted preserve the turn.
		t.log.Error("Upstream responses stream failed",
			"phase", "upstream_stream_error",
			"message", responsesErrorMessage(event),
		)
		return true, nil

	default:
		return false, nil
	}
}

func (t *translator) openResponsesToolBlock(event *openai.ResponsesStreamEvent, ctx *responsesContext) (*toolCallState, error) {
	upstreamIndex := ctx.resolve(event)

	id := eventCallID(event)
	name := ""
	if event.Item != nil {
		name = event.Item.Name
	}
	// Tool blocks share index space with chat-wire tool calls but live in a
	// dedicated range so message output items never collide.
	return t.openToolBlock(responsesToolKeyBase+upstreamIndex, strings.TrimSpace(id), name)
}

// responsesToolKeyBase offsets responses-wire tool keys; output_index also
// counts message items, so raw indexes are not dense per tool.
const responsesToolKeyBase = 1 << 16

func (t *translator) consumeResponsesCompleted(event *openai.ResponsesStreamEvent) {
	response := event.Response
	if response == nil {
		return
	}

	if response.Usage != nil {
		t.usage.InputTokens = response.Usage.InputTokens
		t.usage.OutputTokens = response.Usage.OutputTokens
		t.usage.CacheReadInputTokens = response.Usage.InputTokensDetails.CachedTokens
	}

	if t.stopReason == "" {
		sawFunctionCall := t.anyToolSeen
		for _, item := range response.Output {
			if item.Type == "function_call" {
				sawFunctionCall = true
			}
		}
		switch {
		case sawFunctionCall:
			t.stopReason = anthropic.StopToolUse
		case response.Status == "incomplete":
			reason := ""
			if response.IncompleteDetails != nil {
				reason = response.IncompleteDetails.Reason
			}
			t.stopReason = converter.MapResponsesIncompleteReason(reason)
		default:
			t.stopReason = anthropic.StopEndTurn
		}
	}
}

func rawToArgumentsString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

func responsesErrorMessage(event *openai.ResponsesStreamEvent) string {
	if event.Error != nil && event.Error.Message != "" {
		return event.Error.Message
	}
	if event.Message != "" {
		return event.Message
	}
	return "upstream responses stream failed"
}
