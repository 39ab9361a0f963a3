package openai

import "encoding/json"

// Roles on the OpenAI chat wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"

	ToolTypeFunction = "function"
)

// ---------------------------------------------------------------------------
// Chat wire — request types
// ---------------------------------------------------------------------------

// ChatRequest is a /chat/completions request body.
type ChatRequest struct {
	Model           string         `json:"model"`
	Messages        []ChatMessage  `json:"messages"`
	MaxTokens       *int           `json:"max_tokens,omitempty"`
	Temperature     float64        `json:"temperature"`
	TopP            *float64       `json:"top_p,omitempty"`
	Stop            []string       `json:"stop,omitempty"`
	Stream          bool           `json:"stream,omitempty"`
	StreamOptions   *StreamOptions `json:"stream_options,omitempty"`
	Tools           []Tool         `json:"tools,omitempty"`
	ToolChoice      interface{}    `json:"tool_choice,omitempty"`
	ReasoningEffort string         `json:"reasoning_effort,omitempty"`
}

// EnableStreamUsage turns on streaming with per-stream usage reporting.
func (r *ChatRequest) EnableStreamUsage() {
	r.Stream = true
	r.StreamOptions = &StreamOptions{IncludeUsage: true}
}

// StreamOptions requests usage frames on streaming responses.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatMessage is one flat message on the chat wire.
// Content is a string, a []ContentPart, or nil (assistant tool-call turns).
type ChatMessage struct {
	Role       string      `json:"role"`
	Content    interface{} `json:"content,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

// ContentPart is a typed part of a multi-part user message.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image reference or data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// ToolCall is an assistant-initiated function invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its JSON-string arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a callable function to upstream.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition carries the function schema verbatim.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// NamedToolChoice pins upstream tool selection to one function.
type NamedToolChoice struct {
	Type     string          `json:"type"`
	Function NamedToolTarget `json:"function"`
}

// NamedToolTarget names the pinned function.
type NamedToolTarget struct {
	Name string `json:"name"`
}

// ---------------------------------------------------------------------------
// Chat wire — response types (parse side; everything optional)
// ---------------------------------------------------------------------------

// ChatResponse is a non-streaming /chat/completions reply.
type ChatResponse struct {
	ID      string       `json:"id"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage"`
}

// TotalTokens sums prompt and completion tokens, zero when usage is absent.
func (r *ChatResponse) TotalTokens() int {
	if r.Usage == nil {
		return 0
	}
	return r.Usage.PromptTokens + r.Usage.CompletionTokens
}

// ChatChoice is one generation alternative; the bridge only reads the first.
type ChatChoice struct {
	Message      *ResponseMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// ResponseMessage is the assistant message inside a choice.
// Content may be a string, an array of parts, or null; reasoning fields are
// polymorphic across upstream vendors and kept raw.
type ResponseMessage struct {
	Content          json.RawMessage    `json:"content"`
	ReasoningContent json.RawMessage    `json:"reasoning_content"`
	Reasoning        json.RawMessage    `json:"reasoning"`
	Signature        string             `json:"signature"`
	ToolCalls        []ResponseToolCall `json:"tool_calls"`
}

// ResponseToolCall is a tool call on the parse side; id may be absent.
type ResponseToolCall struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Function *FunctionCall `json:"function"`
}

// Usage is the chat-wire token accounting block.
type Usage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	PromptTokensDetails struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
}

// ---------------------------------------------------------------------------
// Chat wire — streaming delta types
// ---------------------------------------------------------------------------

// StreamChunk is one parsed SSE data payload from a streaming completion.
type StreamChunk struct {
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage         `json:"usage"`
}

// StreamChoice carries the delta and, once, the finish reason.
type StreamChoice struct {
	Delta        *StreamDelta `json:"delta"`
	FinishReason string       `json:"finish_reason"`
}

// StreamDelta is a flat token delta. Content distinguishes "absent" from
// "empty string" with a pointer; reasoning fields stay raw for the
// polymorphism probe.
type StreamDelta struct {
	Content          *string          `json:"content"`
	ReasoningContent json.RawMessage  `json:"reasoning_content"`
	Reasoning        json.RawMessage  `json:"reasoning"`
	Signature        string           `json:"signature"`
	ToolCalls        []StreamToolCall `json:"tool_calls"`
}

// StreamToolCall is a fragment of a tool call, matched by Index.
type StreamToolCall struct {
	Index    *int                `json:"index"`
	ID       string              `json:"id"`
	Function *StreamFunctionCall `json:"function"`
}

// StreamFunctionCall carries name and argument fragments.
type StreamFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
