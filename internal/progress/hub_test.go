package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func (c *captureSink) Consume(_ context.Context, batch []Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, append([]Event(nil), batch...))
	return nil
}

func (c *captureSink) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureSink) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

func testEvent(stage Stage) Event {
	return Event{
		RunID: UUIDToBytes(uuid.New()),
		TS:    time.Now().UTC(),
		Stage: stage,
		Site:  "example.com",
		Name:  "sitemap",
	}
}

func TestHubDeliversAndClosesSinks(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(Config{FlushInterval: 10 * time.Millisecond}, sink)

	for range 5 {
		hub.Emit(testEvent(StageFetchAttempt))
	}
	if err := hub.Close(context.Background()); err != nil {
		t.Fatalf("close hub: %v", err)
	}
	if got := sink.total(); got != 5 {
		t.Fatalf("expected 5 delivered events, got %d", got)
	}
	if !sink.closed {
		t.Fatal("expected sink to be closed")
	}
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{Stage: StageRunStart}) // missing run id and timestamp
	if err := hub.Close(context.Background()); err != nil {
		t.Fatalf("close hub: %v", err)
	}
	if got := sink.total(); got != 0 {
		t.Fatalf("expected invalid event to be discarded, got %d", got)
	}
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	if err := hub.Close(context.Background()); err != nil {
		t.Fatalf("close hub: %v", err)
	}
	hub.Emit(testEvent(StageRunStart))
	if got := sink.total(); got != 0 {
		t.Fatalf("expected no events after close, got %d", got)
	}
}

func TestEventValidate(t *testing.T) {
	base := testEvent(StageFetchAttempt)
	if err := base.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	missingSite := base
	missingSite.Site = ""
	if err := missingSite.Validate(); err == nil {
		t.Fatal("fetch attempt without site should fail validation")
	}

	unnamed := testEvent(StageSignalFound)
	unnamed.Name = ""
	if err := unnamed.Validate(); err == nil {
		t.Fatal("signal event without name should fail validation")
	}

	unknown := base
	unknown.Stage = Stage("BOGUS")
	if err := unknown.Validate(); err == nil {
		t.Fatal("unknown stage should fail validation")
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]StatusClass{
		200: Status2xx,
		301: Status3xx,
		404: Status4xx,
		503: Status5xx,
		0:   StatusOther,
	}
	for code, want := range cases {
		if got := ClassifyStatus(code); got != want {
			t.Fatalf("ClassifyStatus(%d) = %s, want %s", code, got, want)
		}
	}
}
