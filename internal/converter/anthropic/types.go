package anthropic

import (
	"bytes"
	"encoding/json"
)

// Roles and stop reasons used on the Anthropic side of the bridge.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	StopEndTurn   = "end_turn"
	StopMaxTokens = "max_tokens"
	StopToolUse   = "tool_use"
)

// Content block type identifiers.
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockThinking   = "thinking"
)

// MessagesRequest represents a request to the Anthropic Messages API.
// Parsed directly from JSON (no SDK dependency): clients in the wild send
// loose shapes, so string-or-array fields use the Content union type.
type MessagesRequest struct {
	Model         string      `json:"model"`
	Messages      []Message   `json:"messages"`
	System        *Content    `json:"system,omitempty"`
	MaxTokens     int         `json:"max_tokens"`
	Temperature   *float64    `json:"temperature,omitempty"`
	TopP          *float64    `json:"top_p,omitempty"`
	StopSequences []string    `json:"stop_sequences,omitempty"`
	Stream        bool        `json:"stream,omitempty"`
	Tools         []Tool      `json:"tools,omitempty"`
	ToolChoice    *ToolChoice `json:"tool_choice,omitempty"`
	Thinking      *Thinking   `json:"thinking,omitempty"`
	Metadata      *Metadata   `json:"metadata,omitempty"`
}

// TokenCountRequest is the body of POST /v1/messages/count_tokens.
type TokenCountRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	System   *Content  `json:"system,omitempty"`
	Tools    []Tool    `json:"tools,omitempty"`
}

// Message is a single conversation turn.
type Message struct {
	Role    string  `json:"role"` // "user" or "assistant"
	Content Content `json:"content"`
}

// Content is either a plain string or an ordered list of content blocks.
type Content struct {
	Text   string
	Blocks []ContentBlock
	isText bool
}

// IsText reports whether the content was a plain JSON string.
func (c *Content) IsText() bool { return c.isText }

// TextContent builds a plain-string Content. Used by tests and by the
// translator when synthesizing turns.
func TextContent(text string) Content {
	return Content{Text: text, isText: true}
}

// BlocksContent builds a block-list Content.
func BlocksContent(blocks ...ContentBlock) Content {
	return Content{Blocks: blocks}
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Content{}
		return nil
	}
	if trimmed[0] == '"' {
		c.Blocks = nil
		c.isText = true
		return json.Unmarshal(trimmed, &c.Text)
	}
	if trimmed[0] == '[' {
		c.Text = ""
		c.isText = false
		return json.Unmarshal(trimmed, &c.Blocks)
	}
	// Tolerate a single bare block object.
	var block ContentBlock
	if err := json.Unmarshal(trimmed, &block); err != nil {
		return err
	}
	c.Blocks = []ContentBlock{block}
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.isText {
		return json.Marshal(c.Text)
	}
	if c.Blocks == nil {
		return []byte("null"), nil
	}
	return json.Marshal(c.Blocks)
}

// ContentBlock is a universal request-side content block.
// Fields are populated according to Type.
type ContentBlock struct {
	Type string `json:"type"`

	// text block
	Text string `json:"text,omitempty"`

	// image block
	Source *MediaSource `json:"source,omitempty"`

	// tool_use block (assistant turns)
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result block (user turns); Content is string, block list, or
	// arbitrary JSON depending on the client.
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	// thinking block
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// MediaSource describes the source of an image content block.
type MediaSource struct {
	Type      string `json:"type"`                 // "base64" or "url"
	MediaType string `json:"media_type,omitempty"` // e.g. "image/jpeg"
	Data      string `json:"data,omitempty"`       // base64 payload (type=base64)
	URL       string `json:"url,omitempty"`        // remote URL (type=url)
}

// Tool is a client-declared function tool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ToolChoice is either {"type":"auto"|"any"|"none"} or {"type":"tool","name":...}.
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Thinking enables extended thinking with an optional token budget.
type Thinking struct {
	Type         string `json:"type"` // "enabled" or "disabled"
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// Enabled reports whether the client asked for thinking content.
// Loose clients send "on"/"auto" or just a budget without a type.
func (t *Thinking) Enabled() bool {
	if t == nil {
		return false
	}
	switch t.Type {
	case "disabled", "off", "none":
		return false
	case "enabled", "on", "auto":
		return true
	case "":
		return t.BudgetTokens > 0
	default:
		return true
	}
}

// Metadata carries per-request client metadata.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// ---------------------------------------------------------------------------
// Response types
// ---------------------------------------------------------------------------

// MessagesResponse is a non-streaming Anthropic Messages reply.
type MessagesResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Role         string          `json:"role"`
	Model        string          `json:"model"`
	Content      []ResponseBlock `json:"content"`
	StopReason   string          `json:"stop_reason"`
	StopSequence *string         `json:"stop_sequence"`
	Usage        Usage           `json:"usage"`
}

// ResponseBlock is an assistant output block in a non-streaming reply.
// Pointer fields keep empty strings serializable ("text":"" must survive).
type ResponseBlock struct {
	Type      string          `json:"type"`
	Text      *string         `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Thinking  *string         `json:"thinking,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

// TextBlock builds a text response block.
func TextBlock(text string) ResponseBlock {
	return ResponseBlock{Type: BlockText, Text: &text}
}

// ThinkingBlock builds a thinking response block.
func ThinkingBlock(text, signature string) ResponseBlock {
	return ResponseBlock{Type: BlockThinking, Thinking: &text, Signature: signature}
}

// ToolUseBlock builds a tool_use response block.
func ToolUseBlock(id, name string, input json.RawMessage) ResponseBlock {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	return ResponseBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// Usage reports token consumption to the client.
type Usage struct {
	InputTokens          int `json:"input_tokens"`
	OutputTokens         int `json:"output_tokens"`
	CacheReadInputTokens int `json:"cache_read_input_tokens,omitempty"`
}

// ErrorResponse is the Anthropic error envelope.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the error class and carries the human-readable message.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
