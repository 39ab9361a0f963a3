package stream

import (
	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
)

// Anthropic SSE event names.
const (
	EventMessageStart      = "message_start"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventPing              = "ping"
)

// Delta type identifiers.
const (
	DeltaText      = "text_delta"
	DeltaThinking  = "thinking_delta"
	DeltaInputJSON = "input_json_delta"
	DeltaSignature = "signature_delta"
)

type typeOnlyEvent struct {
	Type string `json:"type"`
}

type indexedEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type messageStartEvent struct {
	Type    string              `json:"type"`
	Message messageStartPayload `json:"message"`
}

type messageStartPayload struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Role         string          `json:"role"`
	Model        string          `json:"model"`
	Content      []struct{}      `json:"content"`
	StopReason   *string         `json:"stop_reason"`
	StopSequence *string         `json:"stop_sequence"`
	Usage        anthropic.Usage `json:"usage"`
}

type contentBlockStartEvent struct {
	Type         string      `json:"type"`
	Index        int         `json:"index"`
	ContentBlock interface{} `json:"content_block"`
}

type textContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type thinkingContentBlock struct {
	Type     string `json:"type"`
	Thinking string `json:"thinking"`
}

type toolUseContentBlock struct {
	Type  string   `json:"type"`
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Input struct{} `json:"input"`
}

type contentBlockDeltaEvent struct {
	Type  string      `json:"type"`
	Index int         `json:"index"`
	Delta interface{} `json:"delta"`
}

type textDeltaPayload struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type thinkingDeltaPayload struct {
	Type     string `json:"type"`
	Thinking string `json:"thinking"`
}

type signatureDeltaPayload struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
}

type inputJSONDeltaPayload struct {
	Type        string `json:"type"`
	PartialJSON string `json:"partial_json"`
}

type messageDeltaEvent struct {
	Type  string              `json:"type"`
	Delta messageDeltaPayload `json:"delta"`
	Usage anthropic.Usage     `json:"usage"`
}

type messageDeltaPayload struct {
	StopReason   string  `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}
