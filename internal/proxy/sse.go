package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mixaill76/claude_openai_bridge/internal/monitoring"
)

// sseWriteTimeout is the per-event write deadline. A client that stops
// reading for this long gets its connection terminated.
const sseWriteTimeout = 60 * time.Second

// sseSink writes Anthropic SSE events to the client connection, flushing
// after every event so each event leaves the process before the next
// upstream read (natural backpressure).
type sseSink struct {
	w          http.ResponseWriter
	controller *http.ResponseController
	metrics    *monitoring.Metrics
}

// newSSESink prepares the response for event streaming and returns the sink.
// Returns false when the connection cannot stream.
func newSSESink(w http.ResponseWriter, metrics *monitoring.Metrics) (*sseSink, bool) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return &sseSink{
		w:          w,
		controller: http.NewResponseController(w),
		metrics:    metrics,
	}, true
}

// Send frames one event as "event: <name>\ndata: <json>\n\n" and flushes.
func (s *sseSink) Send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE event: %w", err)
	}

	_ = s.controller.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	if err := s.controller.Flush(); err != nil {
		return err
	}

	s.metrics.RecordStreamEvent(event)
	return nil
}
