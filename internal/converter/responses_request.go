package converter

import (
	"log/slog"
	"strings"

	"github.com/mixaill76/claude_openai_bridge/internal/config"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/openai"
)

// ClaudeToResponses rewrites an Anthropic Messages request into a
// responses-wire upstream request. The chat translation runs first; its flat
// message list is then lifted into typed input items so both wires share one
// set of block-mapping rules.
func ClaudeToResponses(request *anthropic.MessagesRequest, cfg *config.Config, log *slog.Logger) (*openai.ResponsesRequest, *ToolRegistry) {
	chat, registry := ClaudeToChat(request, cfg, log)

	responses := &openai.ResponsesRequest{
		Model:       chat.Model,
		Temperature: chat.Temperature,
		TopP:        chat.TopP,
		Stop:        chat.Stop,
		Stream:      chat.Stream,
	}
	if chat.MaxTokens != nil {
		maxOutput := *chat.MaxTokens
		responses.MaxOutputTokens = &maxOutput
	}
	if chat.ReasoningEffort != "" {
		responses.Reasoning = &openai.ResponsesReasoning{Effort: chat.ReasoningEffort}
	}

	var instructions []string
	for _, message := range chat.Messages {
		switch message.Role {
		case openai.RoleSystem:
			if text, ok := message.Content.(string); ok && strings.TrimSpace(text) != "" {
				instructions = append(instructions, text)
			}
		case openai.RoleUser:
			responses.Input = append(responses.Input, openai.InputMessage{
				Role:    openai.RoleUser,
				Content: mapUserContent(message.Content),
			})
		case openai.RoleAssistant:
			appendAssistantInput(responses, &message)
		case openai.RoleTool:
			output, _ := message.Content.(string)
			responses.Input = append(responses.Input, openai.FunctionCallOutputItem{
				Type:   "function_call_output",
				CallID: message.ToolCallID,
				Output: output,
			})
		}
	}
	responses.Instructions = strings.Join(instructions, "\n\n")

	if cfg.ForwardThinkingItems {
		prependThinkingItems(responses, request)
	}

	for _, tool := range chat.Tools {
		responses.Tools = append(responses.Tools, openai.ResponsesTool{
			Type:        tool.Type,
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
		})
	}
	responses.ToolChoice = mapResponsesToolChoice(chat.ToolChoice)

	return responses, registry
}

func mapUserContent(content interface{}) interface{} {
	switch value := content.(type) {
	case string:
		return value
	case []openai.ContentPart:
		parts := make([]openai.ResponsesContentPart, 0, len(value))
		for _, part := range value {
			switch part.Type {
			case "text":
				parts = append(parts, openai.ResponsesContentPart{Type: "input_text", Text: part.Text})
			case "image_url":
				if part.ImageURL != nil {
					parts = append(parts, openai.ResponsesContentPart{Type: "input_image", ImageURL: part.ImageURL.URL})
				}
			}
		}
		return parts
	default:
		return ""
	}
}

func appendAssistantInput(responses *openai.ResponsesRequest, message *openai.ChatMessage) {
	if text, ok := message.Content.(string); ok {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			responses.Input = append(responses.Input, openai.InputMessage{
				Role:    openai.RoleAssistant,
				Content: trimmed,
			})
		}
	}
	for _, toolCall := range message.ToolCalls {
		responses.Input = append(responses.Input, openai.FunctionCallItem{
			Type:      "function_call",
			CallID:    toolCall.ID,
			Name:      toolCall.Function.Name,
			Arguments: toolCall.Function.Arguments,
		})
	}
}

// prependThinkingItems replays assistant thinking blocks as reasoning input
// items for upstream cache affinity. Off by default.
func prependThinkingItems(responses *openai.ResponsesRequest, request *anthropic.MessagesRequest) {
	var items []interface{}
	for _, turn := range request.Messages {
		if turn.Role != anthropic.RoleAssistant || turn.Content.IsText() {
			continue
		}
		for _, block := range turn.Content.Blocks {
			if block.Type != anthropic.BlockThinking || block.Thinking == "" {
				continue
			}
			items = append(items, openai.ReasoningItem{
				Type: "reasoning",
				Summary: []openai.ReasoningSummaryPart{
					{Type: "summary_text", Text: block.Thinking},
				},
			})
		}
	}
	if len(items) > 0 {
		responses.Input = append(items, responses.Input...)
	}
}

func mapResponsesToolChoice(choice interface{}) interface{} {
	switch value := choice.(type) {
	case nil:
		return nil
	case string:
		return value
	case openai.NamedToolChoice:
		return map[string]string{
			"type": openai.ToolTypeFunction,
			"name": value.Function.Name,
		}
	default:
		return nil
	}
}
