package converter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mixaill76/claude_openai_bridge/internal/config"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/openai"
	"github.com/mixaill76/claude_openai_bridge/internal/models"
)

// ClaudeToChat rewrites an Anthropic Messages request into a chat-wire
// upstream request, returning the per-request tool registry alongside.
//
// Unknown block types are skipped with a warning and never fail the
// translation; a user turn left with no content becomes an empty user
// message. The resulting message list is not checked for emptiness.
func ClaudeToChat(request *anthropic.MessagesRequest, cfg *config.Config, log *slog.Logger) (*openai.ChatRequest, *ToolRegistry) {
	mapper := models.NewMapper(cfg.BigModel, cfg.MiddleModel, cfg.SmallModel)
	mappedModel := mapper.Resolve(request.Model)
	registry := NewToolRegistry()

	log.Debug("Model routing",
		"phase", "model_routing",
		"claude_model", request.Model,
		"upstream_model", mappedModel,
		"thinking_enabled", request.Thinking.Enabled(),
	)

	messages := make([]openai.ChatMessage, 0, len(request.Messages)+1)
	if system := extractSystemText(request.System); system != "" {
		messages = append(messages, openai.ChatMessage{Role: openai.RoleSystem, Content: system})
	}
	messages = appendConversation(messages, request.Messages, registry, cfg.DebugToolIDMatching, log)

	chat := &openai.ChatRequest{
		Model:       mappedModel,
		Messages:    messages,
		Temperature: 1.0,
		Stream:      request.Stream,
	}
	if request.MaxTokens > 0 {
		maxTokens := request.MaxTokens
		chat.MaxTokens = &maxTokens
	}
	if request.Temperature != nil {
		chat.Temperature = *request.Temperature
	}
	chat.TopP = request.TopP
	if len(request.StopSequences) > 0 {
		chat.Stop = request.StopSequences
	}
	if effort := DeriveReasoningEffort(request.Thinking, request.MaxTokens, mappedModel, cfg.MinThinkingLevel); effort != "" {
		chat.ReasoningEffort = effort
	}

	addTools(request, chat, registry)
	addToolChoice(request, chat)

	log.Debug("Converted request for upstream",
		"phase", "upstream_request_summary",
		"upstream_model", chat.Model,
		"stream", chat.Stream,
		"messages_len", len(chat.Messages),
		"tools_len", len(chat.Tools),
		"has_tool_choice", chat.ToolChoice != nil,
	)

	return chat, registry
}

// appendConversation flattens Anthropic turns into the flat chat message list,
// preserving assistant / tool / user ordering.
func appendConversation(
	messages []openai.ChatMessage,
	turns []anthropic.Message,
	registry *ToolRegistry,
	debugToolIDs bool,
	log *slog.Logger,
) []openai.ChatMessage {
	for _, turn := range turns {
		switch turn.Role {
		case anthropic.RoleAssistant:
			assistant := convertAssistantTurn(&turn, log)
			for _, toolCall := range assistant.ToolCalls {
				registry.RecordToolCallID(toolCall.ID)
			}
			messages = append(messages, assistant)

		case anthropic.RoleUser:
			messages = append(messages, convertUserTurn(&turn, registry, debugToolIDs, log)...)

		default:
			log.Warn("Skipping turn with unknown role", "phase", "drop_turn", "role", turn.Role)
		}
	}
	return messages
}

// convertAssistantTurn folds assistant text blocks and tool_use blocks into
// one chat-wire assistant message. Thinking blocks are dropped on the chat
// wire (there is no place for them).
func convertAssistantTurn(turn *anthropic.Message, log *slog.Logger) openai.ChatMessage {
	message := openai.ChatMessage{Role: openai.RoleAssistant}

	if turn.Content.IsText() {
		message.Content = turn.Content.Text
		return message
	}

	var textParts []string
	for _, block := range turn.Content.Blocks {
		switch block.Type {
		case anthropic.BlockText:
			textParts = append(textParts, block.Text)
		case anthropic.BlockToolUse:
			if toolCall, ok := buildToolCall(&block, log); ok {
				message.ToolCalls = append(message.ToolCalls, toolCall)
			}
		case anthropic.BlockThinking:
			// dropped: the chat wire has no assistant reasoning input
		default:
			log.Warn("Skipping unknown assistant block", "phase", "drop_block", "block_type", block.Type)
		}
	}
	if len(textParts) > 0 {
		message.Content = strings.Join(textParts, "")
	}
	return message
}

func buildToolCall(block *anthropic.ContentBlock, log *slog.Logger) (openai.ToolCall, bool) {
	id := strings.TrimSpace(block.ID)
	if id == "" {
		log.Warn("Dropping assistant tool_use block", "phase", "drop_tool_use", "reason", "empty_id")
		return openai.ToolCall{}, false
	}
	name := strings.TrimSpace(block.Name)
	if name == "" {
		log.Warn("Dropping assistant tool_use block", "phase", "drop_tool_use", "reason", "empty_name", "tool_id", id)
		return openai.ToolCall{}, false
	}

	arguments := "{}"
	if len(block.Input) > 0 {
		arguments = string(block.Input)
	}
	return openai.ToolCall{
		ID:   id,
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}, true
}

// convertUserTurn splits a user turn into tool role messages (one per
// tool_result block) followed by a user message carrying the remaining
// content, preserving their relative order.
func convertUserTurn(
	turn *anthropic.Message,
	registry *ToolRegistry,
	debugToolIDs bool,
	log *slog.Logger,
) []openai.ChatMessage {
	if turn.Content.IsText() {
		return []openai.ChatMessage{{Role: openai.RoleUser, Content: turn.Content.Text}}
	}

	var out []openai.ChatMessage
	var parts []openai.ContentPart

	for _, block := range turn.Content.Blocks {
		switch block.Type {
		case anthropic.BlockToolResult:
			out = append(out, convertToolResult(&block, registry, debugToolIDs, log))
		case anthropic.BlockText:
			parts = append(parts, openai.ContentPart{Type: "text", Text: block.Text})
		case anthropic.BlockImage:
			if part, ok := convertImageBlock(&block); ok {
				parts = append(parts, part)
			} else {
				log.Warn("Skipping image block without usable source", "phase", "drop_block", "block_type", block.Type)
			}
		default:
			log.Warn("Skipping unknown user block", "phase", "drop_block", "block_type", block.Type)
		}
	}

	if len(parts) == 1 && parts[0].Type == "text" {
		out = append(out, openai.ChatMessage{Role: openai.RoleUser, Content: parts[0].Text})
	} else if len(parts) > 0 {
		out = append(out, openai.ChatMessage{Role: openai.RoleUser, Content: parts})
	}

	if len(out) == 0 {
		out = append(out, openai.ChatMessage{Role: openai.RoleUser, Content: ""})
	}
	return out
}

// convertToolResult rewrites a tool_result block into a tool role message.
// An unmatched tool_use_id does not drop the message: the id round-trips
// verbatim as a fallback and the mismatch is flagged for debugging.
func convertToolResult(
	block *anthropic.ContentBlock,
	registry *ToolRegistry,
	debugToolIDs bool,
	log *slog.Logger,
) openai.ChatMessage {
	toolCallID := strings.TrimSpace(block.ToolUseID)
	if toolCallID == "" {
		toolCallID = NewToolUseID()
		log.Warn("tool_result without tool_use_id, synthesizing fallback",
			"phase", "tool_result_fallback_id",
			"fallback_id", toolCallID,
		)
	} else if !registry.KnownToolCallID(toolCallID) {
		if debugToolIDs {
			log.Warn("tool_result references unknown tool_use_id",
				"phase", "tool_result_unmatched",
				"tool_call_id", toolCallID,
				"known_ids_count", registry.KnownIDCount(),
				"known_tools", registry.ToolCount(),
			)
		} else {
			log.Debug("tool_result references unknown tool_use_id",
				"phase", "tool_result_unmatched",
				"tool_call_id", toolCallID,
			)
		}
	}

	content := stringifyToolResultContent(block.Content)
	if block.IsError {
		content = "Error: " + content
	}
	return openai.ChatMessage{
		Role:       openai.RoleTool,
		ToolCallID: toolCallID,
		Content:    content,
	}
}

// stringifyToolResultContent flattens tool_result content to a single string:
// strings pass verbatim, block lists concatenate their text parts, anything
// structured is JSON-serialized.
func stringifyToolResultContent(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "No content provided"
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			var block struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}
			if err := json.Unmarshal(item, &block); err == nil && block.Text != "" {
				parts = append(parts, block.Text)
				continue
			}
			var itemText string
			if err := json.Unmarshal(item, &itemText); err == nil {
				parts = append(parts, itemText)
				continue
			}
			parts = append(parts, string(item))
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	}

	var object struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &object); err == nil && object.Type == anthropic.BlockText {
		return object.Text
	}

	return string(raw)
}

func convertImageBlock(block *anthropic.ContentBlock) (openai.ContentPart, bool) {
	source := block.Source
	if source == nil {
		return openai.ContentPart{}, false
	}
	switch source.Type {
	case "base64":
		if source.MediaType == "" || source.Data == "" {
			return openai.ContentPart{}, false
		}
		return openai.ContentPart{
			Type:     "image_url",
			ImageURL: &openai.ImageURL{URL: fmt.Sprintf("data:%s;base64,%s", source.MediaType, source.Data)},
		}, true
	case "url":
		if source.URL == "" {
			return openai.ContentPart{}, false
		}
		return openai.ContentPart{Type: "image_url", ImageURL: &openai.ImageURL{URL: source.URL}}, true
	default:
		return openai.ContentPart{}, false
	}
}

// extractSystemText stringifies the system prompt: plain strings pass
// through, block lists join their text parts.
func extractSystemText(system *anthropic.Content) string {
	if system == nil {
		return ""
	}
	if system.IsText() {
		return strings.TrimSpace(system.Text)
	}

	parts := make([]string, 0, len(system.Blocks))
	for _, block := range system.Blocks {
		if block.Type == anthropic.BlockText && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func addTools(request *anthropic.MessagesRequest, chat *openai.ChatRequest, registry *ToolRegistry) {
	for _, tool := range request.Tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			continue
		}
		parameters := tool.InputSchema
		if len(parameters) == 0 {
			parameters = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		registry.DeclareTool(name, parameters)
		chat.Tools = append(chat.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionDefinition{
				Name:        name,
				Description: tool.Description,
				Parameters:  parameters,
			},
		})
	}
}

func addToolChoice(request *anthropic.MessagesRequest, chat *openai.ChatRequest) {
	choice := request.ToolChoice
	if choice == nil {
		return
	}

	switch choice.Type {
	case "auto":
		chat.ToolChoice = "auto"
	case "any":
		chat.ToolChoice = "required"
	case "none":
		chat.ToolChoice = "none"
	case "tool":
		if choice.Name != "" {
			chat.ToolChoice = openai.NamedToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.NamedToolTarget{Name: choice.Name},
			}
		} else {
			chat.ToolChoice = "auto"
		}
	default:
		chat.ToolChoice = "auto"
	}
}
