package stream

import (
	"sync"
	"time"
)

// Sink receives translated Anthropic SSE events. The proxy layer implements
// it on top of the client connection (write + flush per event).
type Sink interface {
	Send(event string, data interface{}) error
}

// defaultPingInterval is how long a stream may stay quiet before a ping
// event is emitted to keep intermediaries from closing the connection.
const defaultPingInterval = 15 * time.Second

// PingingSink wraps a Sink and emits ping events whenever no other event has
// been written for the ping interval. Safe for the translator goroutine and
// the timer callback to share.
type PingingSink struct {
	mu       sync.Mutex
	inner    Sink
	timer    *time.Timer
	interval time.Duration
	closed   bool
}

// NewPingingSink wraps inner with quiescence pings. interval <= 0 uses the
// default. Call Close when the stream ends.
func NewPingingSink(inner Sink, interval time.Duration) *PingingSink {
	if interval <= 0 {
		interval = defaultPingInterval
	}
	s := &PingingSink{inner: inner, interval: interval}
	s.timer = time.AfterFunc(interval, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		_ = s.inner.Send(EventPing, typeOnlyEvent{Type: EventPing})
		s.timer.Reset(s.interval)
	})
	return s
}

// Send forwards the event and resets the quiescence timer.
func (s *PingingSink) Send(event string, data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.timer.Stop()
		s.timer.Reset(s.interval)
	}
	return s.inner.Send(event, data)
}

// Close stops the ping timer. Subsequent Sends still pass through.
func (s *PingingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.timer.Stop()
}
