package fetch

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := newBackoffPolicy(time.Second, 4*time.Second)

	d0 := p.delay(0)
	if d0 < time.Second || d0 > time.Second+500*time.Millisecond {
		t.Fatalf("attempt 0 delay out of range: %s", d0)
	}
	d1 := p.delay(1)
	if d1 < 2*time.Second || d1 > 2*time.Second+500*time.Millisecond {
		t.Fatalf("attempt 1 delay out of range: %s", d1)
	}
	d5 := p.delay(5)
	if d5 > 4*time.Second+500*time.Millisecond {
		t.Fatalf("delay should be capped, got %s", d5)
	}
}

func TestBackoffWaitHonorsContext(t *testing.T) {
	p := newBackoffPolicy(time.Minute, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.wait(ctx, 0); err == nil {
		t.Fatal("expected canceled backoff wait to error")
	}
}

func TestIsTerminal(t *testing.T) {
	if !isTerminal(&net.DNSError{Err: "no such host", Name: "nope.invalid"}) {
		t.Fatal("DNS errors are terminal")
	}
	if !isTerminal(context.Canceled) {
		t.Fatal("explicit aborts are terminal")
	}
	if isTerminal(errors.New("connection reset by peer")) {
		t.Fatal("generic network errors are retryable")
	}
	if isTerminal(context.DeadlineExceeded) {
		t.Fatal("timeouts are transient, not terminal")
	}
}
