package converter

import (
	"strings"

	"github.com/google/uuid"
)

// NewMessageID generates an Anthropic-shaped message id (msg_ + 24 hex chars).
func NewMessageID() string {
	return "msg_" + hexID(24)
}

// NewToolUseID generates a synthetic tool_use id (toolu_ + 12 hex chars).
// Issued when upstream omits tool call ids; the id chosen at block open is
// final for the life of the stream.
func NewToolUseID() string {
	return "toolu_" + hexID(12)
}

func hexID(length int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if length > len(id) {
		length = len(id)
	}
	return id[:length]
}
