package openai

import "encoding/json"

// ---------------------------------------------------------------------------
// Responses wire — request types
// ---------------------------------------------------------------------------

// ResponsesRequest is a /responses request body.
type ResponsesRequest struct {
	Model           string              `json:"model"`
	Input           []interface{}       `json:"input"`
	Instructions    string              `json:"instructions,omitempty"`
	MaxOutputTokens *int                `json:"max_output_tokens,omitempty"`
	Temperature     float64             `json:"temperature"`
	TopP            *float64            `json:"top_p,omitempty"`
	Stop            []string            `json:"stop,omitempty"`
	Reasoning       *ResponsesReasoning `json:"reasoning,omitempty"`
	Tools           []ResponsesTool     `json:"tools,omitempty"`
	ToolChoice      interface{}         `json:"tool_choice,omitempty"`
	Stream          bool                `json:"stream"`
}

// EnableStream turns on streaming.
func (r *ResponsesRequest) EnableStream() {
	r.Stream = true
}

// ResponsesReasoning is the responses-wire reasoning knob.
type ResponsesReasoning struct {
	Effort string `json:"effort"`
}

// ResponsesTool is a flattened function tool declaration (no nested
// "function" wrapper on the responses wire).
type ResponsesTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// InputMessage is a message input item ({role, content}).
type InputMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []ResponsesContentPart
}

// ResponsesContentPart is a typed part of a multi-part input message.
type ResponsesContentPart struct {
	Type     string `json:"type"` // "input_text" or "input_image"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// FunctionCallItem replays an assistant tool call into the input sequence.
type FunctionCallItem struct {
	Type      string `json:"type"` // "function_call"
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionCallOutputItem carries a tool result back upstream.
type FunctionCallOutputItem struct {
	Type   string `json:"type"` // "function_call_output"
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// ReasoningItem replays assistant thinking for cache affinity.
type ReasoningItem struct {
	Type    string                 `json:"type"` // "reasoning"
	Summary []ReasoningSummaryPart `json:"summary"`
}

// ReasoningSummaryPart is one summary fragment of a reasoning item.
type ReasoningSummaryPart struct {
	Type string `json:"type"` // "summary_text"
	Text string `json:"text"`
}

// ---------------------------------------------------------------------------
// Responses wire — response types (parse side)
// ---------------------------------------------------------------------------

// ResponsesResponse is a /responses reply, parsed loosely.
type ResponsesResponse struct {
	ID                string             `json:"id"`
	Status            string             `json:"status"`
	IncompleteDetails *IncompleteDetails `json:"incomplete_details"`
	Output            []OutputItem       `json:"output"`
	OutputText        string             `json:"output_text"`
	Usage             *ResponsesUsage    `json:"usage"`
}

// TotalTokens sums input and output tokens, zero when usage is absent.
func (r *ResponsesResponse) TotalTokens() int {
	if r.Usage == nil {
		return 0
	}
	return r.Usage.InputTokens + r.Usage.OutputTokens
}

// IncompleteDetails names why generation stopped early.
type IncompleteDetails struct {
	Reason string `json:"reason"`
}

// OutputItem is one typed output entry (message / reasoning / function_call).
// All fields optional; vendors disagree on exact shapes.
type OutputItem struct {
	Type      string              `json:"type"`
	Content   []OutputContentPart `json:"content"`
	Summary   []OutputSummaryPart `json:"summary"`
	Text      string              `json:"text"`
	Reasoning string              `json:"reasoning"`
	Signature string              `json:"signature"`
	ID        string              `json:"id"`
	CallID    string              `json:"call_id"`
	Name      string              `json:"name"`
	Arguments json.RawMessage     `json:"arguments"`
}

// OutputContentPart is a part of a message output item.
type OutputContentPart struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Refusal string `json:"refusal"`
}

// OutputSummaryPart is a part of a reasoning summary.
type OutputSummaryPart struct {
	Text    string `json:"text"`
	Summary string `json:"summary"`
}

// ResponsesUsage is the responses-wire token accounting block.
type ResponsesUsage struct {
	InputTokens        int `json:"input_tokens"`
	OutputTokens       int `json:"output_tokens"`
	InputTokensDetails struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"input_tokens_details"`
}

// ResponsesStreamEvent is one parsed SSE data payload on the responses wire.
type ResponsesStreamEvent struct {
	Type        string                `json:"type"`
	Delta       json.RawMessage       `json:"delta"`
	Text        string                `json:"text"`
	Item        *OutputItem           `json:"item"`
	ItemID      string                `json:"item_id"`
	OutputIndex *int                  `json:"output_index"`
	CallID      string                `json:"call_id"`
	Arguments   json.RawMessage       `json:"arguments"`
	Response    *ResponsesResponse    `json:"response"`
	Error       *ResponsesStreamError `json:"error"`
	Message     string                `json:"message"`
}

// DeltaText extracts the string payload of a delta event.
func (e *ResponsesStreamEvent) DeltaText() (string, bool) {
	if len(e.Delta) > 0 {
		var text string
		if err := json.Unmarshal(e.Delta, &text); err == nil {
			return text, true
		}
	}
	if e.Text != "" {
		return e.Text, true
	}
	if e.Item != nil && e.Item.Text != "" {
		return e.Item.Text, true
	}
	return "", false
}

// ResponsesStreamError is the error payload of a failed responses stream.
type ResponsesStreamError struct {
	Message string `json:"message"`
}
