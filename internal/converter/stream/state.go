package stream

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/mixaill76/claude_openai_bridge/internal/converter"
	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
)

// Options configures one streaming translation.
type Options struct {
	// Model is echoed in message_start; the proxy passes the resolved
	// upstream model name.
	Model string
	// MessageID is the server-generated message id for this stream.
	MessageID string
	// ThinkingRequested enables the empty-thinking-block fallback.
	ThinkingRequested bool
	// Registry is the request's tool registry, used for id bookkeeping and
	// tool close debug records.
	Registry *converter.ToolRegistry
	// DebugToolIDs turns on per-tool-block close logging.
	DebugToolIDs bool
	Logger       *slog.Logger
}

// toolCallState tracks one upstream tool call and its Anthropic block.
type toolCallState struct {
	blockIndex int
	id         string
	name       string
	// pending holds argument fragments not yet emitted; emitted as a single
	// input_json_delta once the buffer parses as a complete JSON value.
	pending       string
	emitted       bool
	totalArgBytes int
}

// translator is the per-stream state machine shared by both wire flavors.
type translator struct {
	sink Sink
	opts Options
	log  *slog.Logger

	nextIndex     int
	textIndex     int // -1 when no text block is open
	thinkingIndex int // -1 when no thinking block is open
	toolCalls     map[int]*toolCallState

	thinkingOpened bool
	sawThinking    bool
	anyToolSeen    bool

	stopReason string
	usage      anthropic.Usage
}

func newTranslator(sink Sink, opts Options) *translator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &translator{
		sink:          sink,
		opts:          opts,
		log:           log,
		textIndex:     -1,
		thinkingIndex: -1,
		toolCalls:     make(map[int]*toolCallState),
	}
}

func (t *translator) send(event string, data interface{}) error {
	return t.sink.Send(event, data)
}

func (t *translator) sendMessageStart() error {
	return t.send(EventMessageStart, messageStartEvent{
		Type: EventMessageStart,
		Message: messageStartPayload{
			ID:      t.opts.MessageID,
			Type:    "message",
			Role:    anthropic.RoleAssistant,
			Model:   t.opts.Model,
			Content: []struct{}{},
		},
	})
}

// maybeThinkingFallback emits an empty thinking block when thinking was
// requested but upstream produced none before the first real block (or by
// stream end). Runs at most once per stream.
func (t *translator) maybeThinkingFallback() error {
	if !t.opts.ThinkingRequested || t.thinkingOpened || t.sawThinking {
		return nil
	}

	index := t.nextIndex
	t.nextIndex++
	t.thinkingOpened = true

	t.log.Info("Upstream reasoning absent, emitting empty thinking block",
		"phase", "thinking_fallback_start",
		"model", t.opts.Model,
		"message_id", t.opts.MessageID,
		"index", index,
		"stop_reason", t.stopReason,
		"any_tool_seen", t.anyToolSeen,
	)

	if err := t.send(EventContentBlockStart, contentBlockStartEvent{
		Type:         EventContentBlockStart,
		Index:        index,
		ContentBlock: thinkingContentBlock{Type: anthropic.BlockThinking},
	}); err != nil {
		return err
	}
	return t.send(EventContentBlockStop, indexedEvent{Type: EventContentBlockStop, Index: index})
}

func (t *translator) closeThinkingBlock() error {
	if t.thinkingIndex < 0 {
		return nil
	}
	index := t.thinkingIndex
	t.thinkingIndex = -1
	return t.send(EventContentBlockStop, indexedEvent{Type: EventContentBlockStop, Index: index})
}

func (t *translator) closeTextBlock() error {
	if t.textIndex < 0 {
		return nil
	}
	index := t.textIndex
	t.textIndex = -1
	return t.send(EventContentBlockStop, indexedEvent{Type: EventContentBlockStop, Index: index})
}

// handleTextDelta opens the text block lazily and forwards the fragment.
// An open thinking block is closed first; empty fragments still open the
// block but emit no delta.
func (t *translator) handleTextDelta(text string) error {
	if err := t.maybeThinkingFallback(); err != nil {
		return err
	}
	if err := t.closeThinkingBlock(); err != nil {
		return err
	}

	if t.textIndex < 0 {
		t.textIndex = t.nextIndex
		t.nextIndex++
		if err := t.send(EventContentBlockStart, contentBlockStartEvent{
			Type:         EventContentBlockStart,
			Index:        t.textIndex,
			ContentBlock: textContentBlock{Type: anthropic.BlockText},
		}); err != nil {
			return err
		}
	}

	if text == "" {
		return nil
	}
	return t.send(EventContentBlockDelta, contentBlockDeltaEvent{
		Type:  EventContentBlockDelta,
		Index: t.textIndex,
		Delta: textDeltaPayload{Type: DeltaText, Text: text},
	})
}

// handleThinkingDelta opens the thinking block lazily and forwards the text.
func (t *translator) handleThinkingDelta(text string) error {
	if text == "" {
		return nil
	}
	t.sawThinking = true

	if t.thinkingIndex < 0 {
		t.thinkingIndex = t.nextIndex
		t.nextIndex++
		t.thinkingOpened = true
		if err := t.send(EventContentBlockStart, contentBlockStartEvent{
			Type:         EventContentBlockStart,
			Index:        t.thinkingIndex,
			ContentBlock: thinkingContentBlock{Type: anthropic.BlockThinking},
		}); err != nil {
			return err
		}
	}

	return t.send(EventContentBlockDelta, contentBlockDeltaEvent{
		Type:  EventContentBlockDelta,
		Index: t.thinkingIndex,
		Delta: thinkingDeltaPayload{Type: DeltaThinking, Thinking: text},
	})
}

// handleSignatureDelta forwards a thinking signature onto the open thinking block.
func (t *translator) handleSignatureDelta(signature string) error {
	if signature == "" || t.thinkingIndex < 0 {
		return nil
	}
	t.sawThinking = true
	return t.send(EventContentBlockDelta, contentBlockDeltaEvent{
		Type:  EventContentBlockDelta,
		Index: t.thinkingIndex,
		Delta: signatureDeltaPayload{Type: DeltaSignature, Signature: signature},
	})
}

// openToolBlock allocates the Anthropic block for an upstream tool call.
// Any open text or thinking block is closed first; tool blocks stay open
// until the stream terminates.
func (t *translator) openToolBlock(upstreamIndex int, id, name string) (*toolCallState, error) {
	if state, ok := t.toolCalls[upstreamIndex]; ok {
		// Late identity: keep the id chosen at block open final, but adopt a
		// name that arrived after the open event for debug records.
		if state.name == "" && name != "" {
			state.name = name
		}
		return state, nil
	}

	if err := t.maybeThinkingFallback(); err != nil {
		return nil, err
	}
	if err := t.closeTextBlock(); err != nil {
		return nil, err
	}
	if err := t.closeThinkingBlock(); err != nil {
		return nil, err
	}

	if id == "" {
		id = converter.NewToolUseID()
	}
	state := &toolCallState{
		blockIndex: t.nextIndex,
		id:         id,
		name:       name,
	}
	t.nextIndex++
	t.anyToolSeen = true
	t.toolCalls[upstreamIndex] = state

	err := t.send(EventContentBlockStart, contentBlockStartEvent{
		Type:  EventContentBlockStart,
		Index: state.blockIndex,
		ContentBlock: toolUseContentBlock{
			Type: anthropic.BlockToolUse,
			ID:   state.id,
			Name: state.name,
		},
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// appendToolArguments buffers an argument fragment and emits the whole
// buffer as one input_json_delta when it parses as a complete JSON value.
// Later fragments re-buffer and re-emit on the next completion boundary.
func (t *translator) appendToolArguments(state *toolCallState, fragment string) error {
	if fragment == "" {
		return nil
	}
	state.pending += fragment
	state.totalArgBytes += len(fragment)
	return t.flushToolArgumentsIfComplete(state)
}

func (t *translator) flushToolArgumentsIfComplete(state *toolCallState) error {
	trimmed := strings.TrimSpace(state.pending)
	if trimmed == "" || !jsonComplete(trimmed) {
		return nil
	}

	payload := state.pending
	state.pending = ""
	state.emitted = true
	return t.send(EventContentBlockDelta, contentBlockDeltaEvent{
		Type:  EventContentBlockDelta,
		Index: state.blockIndex,
		Delta: inputJSONDeltaPayload{Type: DeltaInputJSON, PartialJSON: payload},
	})
}

// finalize closes every open block in descending index order, emits the
// final message_delta with stop reason and usage, then message_stop.
func (t *translator) finalize() error {
	if err := t.maybeThinkingFallback(); err != nil {
		return err
	}

	type openBlock struct {
		index   int
		toolKey int
		isTool  bool
	}
	var open []openBlock
	if t.textIndex >= 0 {
		open = append(open, openBlock{index: t.textIndex})
	}
	if t.thinkingIndex >= 0 {
		open = append(open, openBlock{index: t.thinkingIndex})
	}
	for key, state := range t.toolCalls {
		open = append(open, openBlock{index: state.blockIndex, toolKey: key, isTool: true})
	}
	sort.Slice(open, func(i, j int) bool { return open[i].index > open[j].index })

	for _, block := range open {
		if block.isTool {
			state := t.toolCalls[block.toolKey]
			if t.opts.DebugToolIDs && t.opts.Registry != nil {
				t.opts.Registry.LogToolClose(t.log, state.id, state.id, state.name, state.totalArgBytes)
			}
		}
		if err := t.send(EventContentBlockStop, indexedEvent{Type: EventContentBlockStop, Index: block.index}); err != nil {
			return err
		}
	}
	t.textIndex = -1
	t.thinkingIndex = -1

	stopReason := t.stopReason
	if stopReason == "" {
		if t.anyToolSeen {
			stopReason = anthropic.StopToolUse
		} else {
			stopReason = anthropic.StopEndTurn
		}
	}

	if err := t.send(EventMessageDelta, messageDeltaEvent{
		Type:  EventMessageDelta,
		Delta: messageDeltaPayload{StopReason: stopReason},
		Usage: t.usage,
	}); err != nil {
		return err
	}
	return t.send(EventMessageStop, typeOnlyEvent{Type: EventMessageStop})
}
