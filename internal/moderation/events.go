package moderation

import (
	"log"
	"sync"
	"time"
)

// EventSink is the weak handle the video/audio workers hold to the side
// channel (§9: "the processor holds a weak handle to the side channel; the
// side channel does not hold back into the processor"). The concrete
// transport (a websocket connection, in this repository's control package)
// implements this interface; the moderation core never imports it.
type EventSink interface {
	Emit(Event)
}

// DiscardSink drops every event. Used before a session's side channel has
// been attached, or for any session whose channel closed mid-stream (§4.6:
// "if the channel is not yet open or has been closed, events are dropped
// silently (logged)").
type DiscardSink struct {
	log *RateLimitedLogger
}

// NewDiscardSink creates a sink that logs drops at most once per minute.
func NewDiscardSink() *DiscardSink {
	return &DiscardSink{log: NewRateLimitedLogger("EVT", time.Minute)}
}

// Emit logs and discards the event.
func (d *DiscardSink) Emit(e Event) {
	d.log.Printf("dropped event (no side channel attached): %+v", e)
}

// FuncSink adapts a plain function to EventSink, used by tests.
type FuncSink func(Event)

// Emit calls the wrapped function.
func (f FuncSink) Emit(e Event) { f(e) }

// SwitchableSink lets a session attach/detach its real transport after
// construction without the workers ever seeing a nil sink (bind()/unbind()
// lifecycle, §6). Writes that fail or land while detached are dropped and
// logged, never retried or buffered (§4.6, §7 "side-channel write failure").
// inner is read by the video/audio worker goroutines and written by
// whatever goroutine owns the control-surface websocket connection, so
// access is guarded the same way wsEventSink guards its own connection.
type SwitchableSink struct {
	mu    sync.Mutex
	inner EventSink
}

// NewSwitchableSink starts out discarding events until Attach is called.
func NewSwitchableSink() *SwitchableSink {
	return &SwitchableSink{inner: NewDiscardSink()}
}

// Attach installs the real transport.
func (s *SwitchableSink) Attach(sink EventSink) {
	s.mu.Lock()
	s.inner = sink
	s.mu.Unlock()
}

// Detach reverts to discarding (e.g. on the side channel closing).
func (s *SwitchableSink) Detach() {
	s.mu.Lock()
	s.inner = NewDiscardSink()
	s.mu.Unlock()
}

// Emit forwards to the currently attached sink.
func (s *SwitchableSink) Emit(e Event) {
	s.mu.Lock()
	inner := s.inner
	s.mu.Unlock()
	if inner == nil {
		log.Printf("EVT: event sink unexpectedly nil, dropping %+v", e)
		return
	}
	inner.Emit(e)
}
