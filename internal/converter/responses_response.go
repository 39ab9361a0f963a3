package converter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/openai"
)

// ResponsesToClaude rewrites a non-streaming responses-wire reply into an
// Anthropic Messages response.
func ResponsesToClaude(response *openai.ResponsesResponse, originalModel string, log *slog.Logger) (*anthropic.MessagesResponse, error) {
	if len(response.Output) == 0 && response.OutputText == "" {
		return nil, errors.New("missing output in upstream responses payload")
	}

	var blocks []anthropic.ResponseBlock
	sawToolUse := false

	for _, item := range response.Output {
		switch item.Type {
		case "message":
			appendMessageItem(&blocks, &item)
		case "reasoning":
			appendReasoningItem(&blocks, &item)
		case "function_call":
			if appendFunctionCallItem(&blocks, &item, log) {
				sawToolUse = true
			}
		}
	}
	if !hasTextBlock(blocks) && response.OutputText != "" {
		blocks = append(blocks, anthropic.TextBlock(response.OutputText))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.TextBlock(""))
	}

	usage := anthropic.Usage{}
	if response.Usage != nil {
		usage.InputTokens = response.Usage.InputTokens
		usage.OutputTokens = response.Usage.OutputTokens
		usage.CacheReadInputTokens = response.Usage.InputTokensDetails.CachedTokens
	}

	return &anthropic.MessagesResponse{
		ID:         anthropicMessageID(response.ID),
		Type:       "message",
		Role:       anthropic.RoleAssistant,
		Model:      originalModel,
		Content:    blocks,
		StopReason: resolveResponsesStopReason(response, sawToolUse),
		Usage:      usage,
	}, nil
}

func appendMessageItem(blocks *[]anthropic.ResponseBlock, item *openai.OutputItem) {
	for _, part := range item.Content {
		switch part.Type {
		case "output_text", "text", "input_text":
			if part.Text != "" {
				*blocks = append(*blocks, anthropic.TextBlock(part.Text))
			}
		case "refusal":
			text := part.Refusal
			if text == "" {
				text = part.Text
			}
			if text != "" {
				*blocks = append(*blocks, anthropic.TextBlock(text))
			}
		}
	}
}

func appendReasoningItem(blocks *[]anthropic.ResponseBlock, item *openai.OutputItem) {
	for _, summary := range item.Summary {
		text := summary.Text
		if text == "" {
			text = summary.Summary
		}
		if text != "" {
			*blocks = append(*blocks, anthropic.ThinkingBlock(text, item.Signature))
		}
	}

	text := item.Text
	if text == "" {
		text = item.Reasoning
	}
	if text != "" {
		*blocks = append(*blocks, anthropic.ThinkingBlock(text, item.Signature))
	}
}

func appendFunctionCallItem(blocks *[]anthropic.ResponseBlock, item *openai.OutputItem, log *slog.Logger) bool {
	id := strings.TrimSpace(item.CallID)
	if id == "" {
		id = strings.TrimSpace(item.ID)
	}
	if id == "" {
		id = NewToolUseID()
		log.Debug("Responses function_call without call_id, synthesizing",
			"phase", "tool_id_synthesized",
			"tool_id", id,
			"name", item.Name,
		)
	}

	*blocks = append(*blocks, anthropic.ToolUseBlock(id, item.Name, parseToolArguments(rawArgumentsString(item.Arguments))))
	return true
}

// rawArgumentsString renders the arguments field, which vendors send either
// as a JSON string or as an inline object.
func rawArgumentsString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

func hasTextBlock(blocks []anthropic.ResponseBlock) bool {
	for _, block := range blocks {
		if block.Type == anthropic.BlockText {
			return true
		}
	}
	return false
}

func resolveResponsesStopReason(response *openai.ResponsesResponse, sawToolUse bool) string {
	if sawToolUse {
		return anthropic.StopToolUse
	}
	if response.Status == "incomplete" {
		reason := ""
		if response.IncompleteDetails != nil {
			reason = response.IncompleteDetails.Reason
		}
		return MapResponsesIncompleteReason(reason)
	}
	return anthropic.StopEndTurn
}

// ParseResponsesBody parses a /responses reply body. Some gateways answer
// non-streaming calls with an SSE-wrapped stream; in that case the last
// complete response payload wins.
func ParseResponsesBody(body []byte, contentType string) (*openai.ResponsesResponse, error) {
	var direct openai.ResponsesResponse
	if err := json.Unmarshal(body, &direct); err == nil && (direct.ID != "" || len(direct.Output) > 0) {
		return &direct, nil
	}

	if !isEventStream(contentType, body) {
		return nil, errors.New("expected JSON object payload")
	}
	return parseSSEWrappedResponse(body)
}

func isEventStream(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/event-stream") {
		return true
	}
	text := string(body)
	return strings.HasPrefix(text, "event:") || strings.Contains(text, "\nevent:")
}

func parseSSEWrappedResponse(body []byte) (*openai.ResponsesResponse, error) {
	var latest *openai.ResponsesResponse

	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSuffix(line, "\r")
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var event struct {
			Response *openai.ResponsesResponse `json:"response"`
		}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return nil, errors.New("failed to parse SSE data JSON")
		}
		if event.Response != nil {
			latest = event.Response
			continue
		}

		var inline openai.ResponsesResponse
		if err := json.Unmarshal([]byte(payload), &inline); err == nil && inline.ID != "" {
			latest = &inline
		}
	}

	if latest == nil {
		return nil, errors.New("no response object found in SSE payload")
	}
	return latest, nil
}
