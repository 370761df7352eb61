package fetch

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"
)

// backoffPolicy computes jittered exponential delays between attempts.
type backoffPolicy struct {
	base time.Duration
	cap  time.Duration
}

func newBackoffPolicy(base, cap time.Duration) backoffPolicy {
	if base <= 0 {
		base = time.Second
	}
	if cap <= 0 {
		cap = 30 * time.Second
	}
	return backoffPolicy{base: base, cap: cap}
}

// delay returns base*2^attempt plus random jitter, capped.
func (p backoffPolicy) delay(attempt int) time.Duration {
	d := float64(p.base) * math.Pow(2, float64(attempt))
	if d > float64(p.cap) {
		d = float64(p.cap)
	}
	return time.Duration(d) + randomJitter(p.base/2)
}

// wait blocks for the attempt's backoff or until ctx is done.
func (p backoffPolicy) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.delay(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// isTerminal reports whether the network error class must fail immediately
// instead of being retried: DNS resolution failures and explicit aborts.
func isTerminal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
