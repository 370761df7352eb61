package sinks

import (
	"context"
	"sync"

	"github.com/sitesignal/sitesignal/internal/progress"
)

// StoreSink keeps events in memory in arrival order. The CLI uses it to print
// a run summary, and tests use it to assert on the emitted stream. Durable
// persistence belongs to the caller, not this pipeline.
type StoreSink struct {
	mu     sync.Mutex
	seq    int64
	events []storedEvent
}

type storedEvent struct {
	Seq   int64
	Event progress.Event
}

// NewStoreSink constructs an empty in-memory sink.
func NewStoreSink() *StoreSink {
	return &StoreSink{}
}

// Consume appends the batch, assigning each event a monotonic sequence number.
func (s *StoreSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.seq++
		s.events = append(s.events, storedEvent{Seq: s.seq, Event: evt})
	}
	return nil
}

// Events returns a copy of all stored events in sequence order.
func (s *StoreSink) Events() []progress.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]progress.Event, len(s.events))
	for i, se := range s.events {
		out[i] = se.Event
	}
	return out
}

// Len reports how many events have been stored.
func (s *StoreSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
