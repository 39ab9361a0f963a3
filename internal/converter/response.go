package converter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/openai"
)

// MapFinishReason maps an upstream finish_reason to an Anthropic stop_reason.
func MapFinishReason(finishReason string) string {
	switch finishReason {
	case "length":
		return anthropic.StopMaxTokens
	case "tool_calls", "function_call":
		return anthropic.StopToolUse
	default:
		return anthropic.StopEndTurn
	}
}

// MapResponsesIncompleteReason maps a responses-wire incomplete reason to an
// Anthropic stop_reason.
func MapResponsesIncompleteReason(reason string) string {
	switch reason {
	case "max_output_tokens":
		return anthropic.StopMaxTokens
	case "tool_use", "function_call":
		return anthropic.StopToolUse
	default:
		return anthropic.StopEndTurn
	}
}

// ChatToClaude rewrites a non-streaming chat-wire reply into an Anthropic
// Messages response. originalModel is echoed as the response model; the proxy
// passes the resolved upstream model name.
func ChatToClaude(response *openai.ChatResponse, originalModel string, log *slog.Logger) (*anthropic.MessagesResponse, error) {
	if len(response.Choices) == 0 {
		return nil, errors.New("no first choice in upstream response")
	}
	choice := response.Choices[0]
	if choice.Message == nil {
		return nil, errors.New("missing message in upstream choice")
	}

	var blocks []anthropic.ResponseBlock
	if text := extractMessageText(choice.Message.Content); text != "" {
		blocks = append(blocks, anthropic.TextBlock(text))
	}
	if thinking := ReasoningTextFromMessage(choice.Message.ReasoningContent, choice.Message.Reasoning); thinking != "" {
		blocks = append(blocks, anthropic.ThinkingBlock(thinking, choice.Message.Signature))
	}
	for _, toolCall := range choice.Message.ToolCalls {
		if block, ok := mapToolCallBlock(&toolCall, log); ok {
			blocks = append(blocks, block)
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.TextBlock(""))
	}

	usage := anthropic.Usage{}
	if response.Usage != nil {
		usage.InputTokens = response.Usage.PromptTokens
		usage.OutputTokens = response.Usage.CompletionTokens
		usage.CacheReadInputTokens = response.Usage.PromptTokensDetails.CachedTokens
	}

	return &anthropic.MessagesResponse{
		ID:         anthropicMessageID(response.ID),
		Type:       "message",
		Role:       anthropic.RoleAssistant,
		Model:      originalModel,
		Content:    blocks,
		StopReason: MapFinishReason(choice.FinishReason),
		Usage:      usage,
	}, nil
}

// anthropicMessageID echoes an upstream id when it is already
// Anthropic-shaped, otherwise mints a fresh msg_ id.
func anthropicMessageID(upstreamID string) string {
	if strings.HasPrefix(upstreamID, "msg_") {
		return upstreamID
	}
	return NewMessageID()
}

// extractMessageText flattens chat-wire message content: a string passes
// verbatim, an array of parts concatenates its text fields, any other
// non-null JSON is rendered raw.
func extractMessageText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var builder strings.Builder
		for _, part := range parts {
			builder.WriteString(part.Text)
		}
		return builder.String()
	}

	return string(raw)
}

// mapToolCallBlock maps an upstream tool_call to a tool_use block.
// A missing id is synthesized so the client can still route the result back.
func mapToolCallBlock(toolCall *openai.ResponseToolCall, log *slog.Logger) (anthropic.ResponseBlock, bool) {
	if toolCall.Type != "" && toolCall.Type != openai.ToolTypeFunction {
		return anthropic.ResponseBlock{}, false
	}
	if toolCall.Function == nil {
		return anthropic.ResponseBlock{}, false
	}

	id := strings.TrimSpace(toolCall.ID)
	if id == "" {
		id = NewToolUseID()
		log.Debug("Upstream tool_call without id, synthesizing",
			"phase", "tool_id_synthesized",
			"tool_id", id,
			"name", toolCall.Function.Name,
		)
	}

	return anthropic.ToolUseBlock(id, toolCall.Function.Name, parseToolArguments(toolCall.Function.Arguments)), true
}

// parseToolArguments validates the JSON-string arguments; malformed payloads
// are preserved under raw_arguments instead of being discarded.
func parseToolArguments(arguments string) json.RawMessage {
	trimmed := strings.TrimSpace(arguments)
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	wrapped, err := json.Marshal(map[string]string{"raw_arguments": arguments})
	if err != nil {
		return json.RawMessage("{}")
	}
	return wrapped
}
