package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result pairs one URL's enrichment outcome with its error, so a single
// failing site never aborts the batch.
type Result struct {
	URL    string
	Record Record
	Err    error
}

// Runner executes enrichment runs for a batch of URLs with a concurrency
// cap. Runs are independent pipelines; the cap exists to avoid overloading
// target sites, not to coordinate work between them.
type Runner struct {
	enricher *Enricher
	logger   *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(enricher *Enricher, logger *zap.Logger) (*Runner, error) {
	if enricher == nil {
		return nil, fmt.Errorf("enricher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{enricher: enricher, logger: logger}, nil
}

// EnrichAll enriches every URL, at most limit at a time (limit <= 0 means
// unbounded). Results preserve input order. Per-URL failures are recorded on
// the Result; only context cancellation stops the batch early.
func (r *Runner) EnrichAll(ctx context.Context, urls []string, policy Policy, limit int) []Result {
	results := make([]Result, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, u := range urls {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{URL: u, Err: err}
				return nil
			}
			record, err := r.enricher.Enrich(ctx, u, policy)
			if err != nil {
				r.logger.Warn("enrichment failed", zap.String("url", u), zap.Error(err))
			}
			results[i] = Result{URL: u, Record: record, Err: err}
			return nil
		})
	}
	// goroutines never return errors, so Wait only synchronizes
	_ = g.Wait()
	return results
}
