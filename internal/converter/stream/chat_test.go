package stream

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixaill76/claude_openai_bridge/internal/converter"
	"github.com/mixaill76/claude_openai_bridge/internal/testhelpers"
)

// captureSink records every emitted event as a generic map.
type captureSink struct {
	names    []string
	payloads []map[string]interface{}
}

func (c *captureSink) Send(event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	c.names = append(c.names, event)
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *captureSink) at(i int) map[string]interface{} {
	return c.payloads[i]
}

func testOptions(thinking bool) Options {
	return Options{
		Model:             "gpt-4o-mini",
		MessageID:         "msg_test000000000000000000",
		ThinkingRequested: thinking,
		Registry:          converter.NewToolRegistry(),
		Logger:            testhelpers.NewTestLogger(),
	}
}

func sse(lines ...string) *strings.Reader {
	var builder strings.Builder
	for _, line := range lines {
		builder.WriteString("data: ")
		builder.WriteString(line)
		builder.WriteString("\n\n")
	}
	return strings.NewReader(builder.String())
}

func TestChatStreamTextAndToolUse(t *testing.T) {
	// Scenario: text fragments, then a tool call arriving in two argument
	// fragments, then finish_reason tool_calls.
	sink := &captureSink{}
	usage, err := TranslateChat(sse(
		`{"choices":[{"delta":{"role":"assistant","content":"Let "}}]}`,
		`{"choices":[{"delta":{"content":"me check."}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"get_time","arguments":"{\""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"tz\":\"UTC\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":9,"completion_tokens":7}}`,
		`[DONE]`,
	), sink, testOptions(false))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"content_block_start",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, sink.names)

	// message_start skeleton
	message := sink.at(0)["message"].(map[string]interface{})
	assert.Equal(t, "msg_test000000000000000000", message["id"])
	assert.Equal(t, "assistant", message["role"])
	assert.Equal(t, "gpt-4o-mini", message["model"])
	assert.Nil(t, message["stop_reason"])

	// text block at index 0
	assert.Equal(t, float64(0), sink.at(1)["index"])
	assert.Equal(t, "text", sink.at(1)["content_block"].(map[string]interface{})["type"])
	assert.Equal(t, "Let ", sink.at(2)["delta"].(map[string]interface{})["text"])
	assert.Equal(t, "me check.", sink.at(3)["delta"].(map[string]interface{})["text"])
	assert.Equal(t, float64(0), sink.at(4)["index"])

	// tool block at index 1
	toolBlock := sink.at(5)["content_block"].(map[string]interface{})
	assert.Equal(t, float64(1), sink.at(5)["index"])
	assert.Equal(t, "tool_use", toolBlock["type"])
	assert.Equal(t, "call_1", toolBlock["id"])
	assert.Equal(t, "get_time", toolBlock["name"])

	// the buffered arguments arrive as one complete input_json_delta
	jsonDelta := sink.at(6)["delta"].(map[string]interface{})
	assert.Equal(t, "input_json_delta", jsonDelta["type"])
	assert.JSONEq(t, `{"tz":"UTC"}`, jsonDelta["partial_json"].(string))
	assert.Equal(t, float64(1), sink.at(7)["index"])

	// final message_delta carries the mapped stop reason and usage
	assert.Equal(t, "tool_use", sink.at(8)["delta"].(map[string]interface{})["stop_reason"])
	finalUsage := sink.at(8)["usage"].(map[string]interface{})
	assert.Equal(t, float64(9), finalUsage["input_tokens"])
	assert.Equal(t, float64(7), finalUsage["output_tokens"])

	assert.Equal(t, 9, usage.InputTokens)
	assert.Equal(t, 7, usage.OutputTokens)
}

func TestChatStreamThinkingFallback(t *testing.T) {
	// Thinking requested but upstream only produces text: an empty thinking
	// block must open and close at index 0 before the text block.
	sink := &captureSink{}
	_, err := TranslateChat(sse(
		`{"choices":[{"delta":{"content":"ok"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`[DONE]`,
	), sink, testOptions(true))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"message_start",
		"content_block_start", // thinking fallback open
		"content_block_stop",  // thinking fallback close
		"content_block_start", // text
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, sink.names)

	thinkingBlock := sink.at(1)["content_block"].(map[string]interface{})
	assert.Equal(t, "thinking", thinkingBlock["type"])
	assert.Equal(t, float64(0), sink.at(1)["index"])
	assert.Equal(t, float64(0), sink.at(2)["index"])

	textBlock := sink.at(3)["content_block"].(map[string]interface{})
	assert.Equal(t, "text", textBlock["type"])
	assert.Equal(t, float64(1), sink.at(3)["index"])
}

func TestChatStreamRealThinkingSuppressesFallback(t *testing.T) {
	sink := &captureSink{}
	_, err := TranslateChat(sse(
		`{"choices":[{"delta":{"reasoning_content":"pondering"}}]}`,
		`{"choices":[{"delta":{"content":"done"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`[DONE]`,
	), sink, testOptions(true))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"message_start",
		"content_block_start", // thinking
		"content_block_delta", // thinking_delta
		"content_block_stop",  // thinking closes when text arrives
		"content_block_start", // text
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, sink.names)

	assert.Equal(t, "thinking_delta", sink.at(2)["delta"].(map[string]interface{})["type"])
	assert.Equal(t, "pondering", sink.at(2)["delta"].(map[string]interface{})["thinking"])
}

func TestChatStreamReasoningObjectVariants(t *testing.T) {
	sink := &captureSink{}
	_, err := TranslateChat(sse(
		`{"choices":[{"delta":{"reasoning":{"content":"a"}}}]}`,
		`{"choices":[{"delta":{"reasoning":{"summary":[{"text":"b"}]}}}]}`,
		`[DONE]`,
	), sink, testOptions(false))
	require.NoError(t, err)

	var thinking strings.Builder
	for i, name := range sink.names {
		if name != "content_block_delta" {
			continue
		}
		delta := sink.at(i)["delta"].(map[string]interface{})
		if delta["type"] == "thinking_delta" {
			thinking.WriteString(delta["thinking"].(string))
		}
	}
	assert.Equal(t, "ab", thinking.String())
}

func TestChatStreamEOFWithoutFinishReason(t *testing.T) {
	sink := &captureSink{}
	_, err := TranslateChat(sse(
		`{"choices":[{"delta":{"content":"partial"}}]}`,
	), sink, testOptions(false))
	require.NoError(t, err)

	last := sink.names[len(sink.names)-1]
	assert.Equal(t, "message_stop", last)
	messageDelta := sink.at(len(sink.names) - 2)
	assert.Equal(t, "end_turn", messageDelta["delta"].(map[string]interface{})["stop_reason"])
}

func TestChatStreamEOFWithOpenToolSynthesizesToolUse(t *testing.T) {
	sink := &captureSink{}
	_, err := TranslateChat(sse(
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"Bash","arguments":"{}"}}]}}]}`,
	), sink, testOptions(false))
	require.NoError(t, err)

	messageDelta := sink.at(len(sink.names) - 2)
	assert.Equal(t, "tool_use", messageDelta["delta"].(map[string]interface{})["stop_reason"])
}

func TestChatStreamMalformedLineSkipped(t *testing.T) {
	sink := &captureSink{}
	_, err := TranslateChat(sse(
		`{"choices":[{"delta":{"content":"a"}}]}`,
		`{not valid json`,
		`{"choices":[{"delta":{"content":"b"}}]}`,
		`[DONE]`,
	), sink, testOptions(false))
	require.NoError(t, err)

	var text strings.Builder
	for i, name := range sink.names {
		if name != "content_block_delta" {
			continue
		}
		delta := sink.at(i)["delta"].(map[string]interface{})
		if delta["type"] == "text_delta" {
			text.WriteString(delta["text"].(string))
		}
	}
	assert.Equal(t, "ab", text.String())
}

func TestChatStreamSynthesizesToolIDWhenAbsent(t *testing.T) {
	sink := &captureSink{}
	_, err := TranslateChat(sse(
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"Bash","arguments":"{}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	), sink, testOptions(false))
	require.NoError(t, err)

	for i, name := range sink.names {
		if name != "content_block_start" {
			continue
		}
		block := sink.at(i)["content_block"].(map[string]interface{})
		if block["type"] == "tool_use" {
			assert.True(t, strings.HasPrefix(block["id"].(string), "toolu_"))
			return
		}
	}
	t.Fatal("no tool_use block emitted")
}

func TestChatStreamToolCallsMatchedByIndexField(t *testing.T) {
	// Two interleaved tool calls distinguished only by their index field.
	sink := &captureSink{}
	_, err := TranslateChat(sse(
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"first","arguments":"{\"a\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"second","arguments":"{\"b\":2}"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"1}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	), sink, testOptions(false))
	require.NoError(t, err)

	deltasByIndex := map[float64]string{}
	for i, name := range sink.names {
		if name != "content_block_delta" {
			continue
		}
		delta := sink.at(i)["delta"].(map[string]interface{})
		if delta["type"] == "input_json_delta" {
			deltasByIndex[sink.at(i)["index"].(float64)] = delta["partial_json"].(string)
		}
	}

	require.Len(t, deltasByIndex, 2)
	assert.JSONEq(t, `{"a":1}`, deltasByIndex[0])
	assert.JSONEq(t, `{"b":2}`, deltasByIndex[1])
}

func TestChatStreamBlockLifecycleInvariant(t *testing.T) {
	// Every content_block_start(i) is closed by exactly one
	// content_block_stop(i); the stream is bracketed by one message_start
	// and one message_stop.
	sink := &captureSink{}
	_, err := TranslateChat(sse(
		`{"choices":[{"delta":{"reasoning_content":"hm"}}]}`,
		`{"choices":[{"delta":{"content":"text"}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"t","arguments":"{}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	), sink, testOptions(true))
	require.NoError(t, err)

	starts := map[float64]int{}
	stops := map[float64]int{}
	messageStarts, messageStops := 0, 0
	for i, name := range sink.names {
		switch name {
		case "message_start":
			messageStarts++
		case "message_stop":
			messageStops++
		case "content_block_start":
			starts[sink.at(i)["index"].(float64)]++
		case "content_block_stop":
			stops[sink.at(i)["index"].(float64)]++
		}
	}

	assert.Equal(t, 1, messageStarts)
	assert.Equal(t, 1, messageStops)
	assert.Equal(t, "message_start", sink.names[0])
	assert.Equal(t, "message_stop", sink.names[len(sink.names)-1])
	assert.Equal(t, starts, stops)
	for index, count := range starts {
		assert.Equal(t, 1, count, "block %v opened more than once", index)
	}
}
