package converter

import (
	"encoding/json"

	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
)

// EstimateInputTokens implements the chars/4 heuristic: text contributes its
// length, tool schemas and non-text blocks contribute their JSON-serialized
// length. Always at least 1 for any input.
func EstimateInputTokens(request *anthropic.TokenCountRequest) int {
	totalChars := contentChars(request.System)
	for _, message := range request.Messages {
		totalChars += contentChars(&message.Content)
	}
	for _, tool := range request.Tools {
		totalChars += serializedLen(tool)
	}

	tokens := (totalChars + 3) / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

func contentChars(content *anthropic.Content) int {
	if content == nil {
		return 0
	}
	if content.IsText() {
		return len(content.Text)
	}

	total := 0
	for _, block := range content.Blocks {
		switch block.Type {
		case anthropic.BlockText:
			total += len(block.Text)
		case anthropic.BlockThinking:
			total += len(block.Thinking)
		default:
			total += serializedLen(block)
		}
	}
	return total
}

func serializedLen(v interface{}) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}
