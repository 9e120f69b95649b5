package mcp

import (
	"sync"
	"time"
)

// Event is one entry in an EventFeed.
type Event struct {
	Timestamp string            `json:"ts"`
	Kind      string            `json:"kind"`
	Subject   string            `json:"subject,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// EventFeed is a thread-safe, append-only event log. Clients poll it with
// Since using the index of the last event they saw.
type EventFeed struct {
	mu     sync.Mutex
	events []Event
	now    func() time.Time
}

// NewEventFeed returns an empty feed.
func NewEventFeed() *EventFeed {
	return &EventFeed{now: time.Now}
}

// Emit appends an event and returns its index.
func (f *EventFeed) Emit(kind, subject string, meta map[string]string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, Event{
		Timestamp: f.now().UTC().Format(time.RFC3339),
		Kind:      kind,
		Subject:   subject,
		Meta:      meta,
	})
	return len(f.events) - 1
}

// Since returns a copy of the events from index idx onward. A negative idx
// is clamped to 0; an idx past the end yields nil.
func (f *EventFeed) Since(idx int) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < 0 {
		idx = 0
	}
	if idx >= len(f.events) {
		return nil
	}
	out := make([]Event, len(f.events)-idx)
	copy(out, f.events[idx:])
	return out
}

// Len returns the number of events.
func (f *EventFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
