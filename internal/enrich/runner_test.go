package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// gateFetcher fails a chosen URL and tracks peak concurrency.
type gateFetcher struct {
	failURL string

	mu      sync.Mutex
	current int
	peak    int
	calls   atomic.Int64
}

func (g *gateFetcher) Fetch(_ context.Context, rawURL string, _ Policy) (FetchResult, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.current++
	if g.current > g.peak {
		g.peak = g.current
	}
	g.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	g.mu.Lock()
	g.current--
	g.mu.Unlock()

	if rawURL == g.failURL {
		return FetchResult{}, errors.New("unreachable")
	}
	return FetchResult{HTML: "<html></html>", FinalURL: rawURL, StatusCode: 200}, nil
}

// seqIDs issues unique run IDs so concurrent runs stay distinguishable.
type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() (string, error) {
	n := s.n.Add(1)
	// valid UUID shape with a distinct tail per call
	return "0190f0a0-0000-7000-8000-" + strings.Repeat("0", 11) + string(rune('0'+n%10)), nil
}

func newBatchRunner(t *testing.T, fetcher Fetcher) *Runner {
	t.Helper()
	e, err := NewEnricher(
		fetcher,
		&stubDiscoverer{},
		&stubDetector{},
		&stubExtractor{},
		&stubAnalyzer{},
		stubHasher{},
		&stepClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		&seqIDs{},
		nil,
		nil,
	)
	require.NoError(t, err)
	r, err := NewRunner(e, nil)
	require.NoError(t, err)
	return r
}

func TestEnrichAllPreservesOrderAndIsolatesFailures(t *testing.T) {
	fetcher := &gateFetcher{failURL: "https://down.example"}
	r := newBatchRunner(t, fetcher)

	urls := []string{"https://a.example", "https://down.example", "https://c.example"}
	results := r.EnrichAll(context.Background(), urls, Policy{}, 2)

	require.Len(t, results, 3)
	for i, res := range results {
		require.Equal(t, urls[i], res.URL)
	}
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
	require.Equal(t, "https://c.example", results[2].Record.FinalURL)
}

func TestEnrichAllHonorsConcurrencyCap(t *testing.T) {
	fetcher := &gateFetcher{}
	r := newBatchRunner(t, fetcher)

	urls := make([]string, 8)
	for i := range urls {
		urls[i] = "https://site.example/" + string(rune('a'+i))
	}
	r.EnrichAll(context.Background(), urls, Policy{}, 2)

	require.Equal(t, int64(8), fetcher.calls.Load())
	require.LessOrEqual(t, fetcher.peak, 2)
}

func TestEnrichAllCancelledContext(t *testing.T) {
	fetcher := &gateFetcher{}
	r := newBatchRunner(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := r.EnrichAll(ctx, []string{"https://a.example", "https://b.example"}, Policy{}, 1)

	for _, res := range results {
		require.ErrorIs(t, res.Err, context.Canceled)
	}
	require.Zero(t, fetcher.calls.Load())
}
