package converter

import (
	"encoding/json"
	"log/slog"
)

// ToolRegistry is the per-request snapshot of declared tools plus the tool
// call ids observed while walking the conversation. The bridge is stateless
// across requests: ids round-trip through the client's message history, so
// the registry only needs to live for one translation + stream.
type ToolRegistry struct {
	schemas map[string]json.RawMessage
	seenIDs map[string]struct{}
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		schemas: make(map[string]json.RawMessage),
		seenIDs: make(map[string]struct{}),
	}
}

// DeclareTool records a declared tool schema.
func (r *ToolRegistry) DeclareTool(name string, schema json.RawMessage) {
	r.schemas[name] = schema
}

// Schema returns the declared input schema for a tool name.
func (r *ToolRegistry) Schema(name string) (json.RawMessage, bool) {
	schema, ok := r.schemas[name]
	return schema, ok
}

// ToolCount returns the number of declared tools.
func (r *ToolRegistry) ToolCount() int {
	return len(r.schemas)
}

// RecordToolCallID remembers a tool call id emitted by an assistant turn.
func (r *ToolRegistry) RecordToolCallID(id string) {
	if id == "" {
		return
	}
	r.seenIDs[id] = struct{}{}
}

// KnownToolCallID reports whether a tool_result references an id emitted
// earlier in the same conversation.
func (r *ToolRegistry) KnownToolCallID(id string) bool {
	_, ok := r.seenIDs[id]
	return ok
}

// KnownIDCount returns how many assistant tool call ids were observed.
func (r *ToolRegistry) KnownIDCount() int {
	return len(r.seenIDs)
}

// LogToolClose emits the tool id matching debug record at tool block close.
func (r *ToolRegistry) LogToolClose(log *slog.Logger, incomingID, outgoingID, name string, argBytes int) {
	if log == nil {
		return
	}
	log.Debug("Tool block closed",
		"phase", "tool_id_matching",
		"incoming_id", incomingID,
		"outgoing_id", outgoingID,
		"name", name,
		"arg_bytes", argBytes,
	)
}
