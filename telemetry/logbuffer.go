package telemetry

import "sync"

// LogBuffer keeps the most recent events in a ring and notifies subscribers
// of each new event. It backs the viewer's debug panel.
type LogBuffer struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool

	subs   map[int]func(Event)
	nextID int
}

// NewLogBuffer creates a buffer holding up to capacity events.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity < 1 {
		capacity = 256
	}
	return &LogBuffer{
		events: make([]Event, capacity),
		subs:   make(map[int]func(Event)),
	}
}

// Record implements Recorder. Subscribers are called outside the lock, in
// the recording goroutine.
func (b *LogBuffer) Record(e Event) {
	b.mu.Lock()
	b.events[b.next] = e
	b.next = (b.next + 1) % len(b.events)
	if b.next == 0 {
		b.full = true
	}
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

// Subscribe registers fn for future events and returns a function that
// removes the subscription.
func (b *LogBuffer) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Events returns the buffered events, oldest first.
func (b *LogBuffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]Event, b.next)
		copy(out, b.events[:b.next])
		return out
	}
	out := make([]Event, 0, len(b.events))
	out = append(out, b.events[b.next:]...)
	out = append(out, b.events[:b.next]...)
	return out
}

// Len returns the number of buffered events.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.events)
	}
	return b.next
}

// Clear drops all buffered events. Subscriptions are kept.
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.events {
		b.events[i] = Event{}
	}
	b.next = 0
	b.full = false
}
