package events

import "sync"

// Event represents a structured state change emitted by the pool.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer holds events until the surrounding unit of work decides whether they
// happened. Flush forwards them in emission order; Reset drops them.
type Buffer struct {
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	if b == nil {
		return nil
	}
	return append([]Event(nil), b.events...)
}

// Flush forwards every buffered event to dst and empties the buffer.
func (b *Buffer) Flush(dst Emitter) {
	if b == nil {
		return
	}
	pending := b.events
	b.events = nil
	if dst == nil {
		return
	}
	for _, evt := range pending {
		dst.Emit(evt)
	}
}

// Reset drops every buffered event.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.events = nil
}

// Recorder is a concurrency-safe Emitter that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Fanout forwards each event to every non-nil emitter in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, dst := range f {
		if dst != nil {
			dst.Emit(evt)
		}
	}
}
