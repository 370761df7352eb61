package fetch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// hostPacer throttles outbound requests per target host, supplementing any
// robots-declared crawl delay.
type hostPacer struct {
	qps      float64
	limiters sync.Map
}

func newHostPacer(qps float64) *hostPacer {
	return &hostPacer{qps: qps}
}

// Wait blocks until the host's limiter grants a slot or ctx is done.
func (p *hostPacer) Wait(ctx context.Context, host string) error {
	if p == nil || p.qps <= 0 || host == "" {
		return nil
	}
	val, _ := p.limiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(p.qps), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait host limiter: %w", err)
	}
	return nil
}
