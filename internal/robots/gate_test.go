package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGateAllowsAndDenies(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprintln(w, "User-agent: *\nDisallow: /blocked\nCrawl-delay: 2")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gate := NewGate("sitesignal-test", zap.NewNop())

	allowed := gate.Check(ctx, srv.URL+"/public")
	if !allowed.Allowed {
		t.Fatal("expected allowed path to pass robots")
	}
	if allowed.CrawlDelay != 2*time.Second {
		t.Fatalf("expected 2s crawl delay, got %s", allowed.CrawlDelay)
	}

	blocked := gate.Check(ctx, srv.URL+"/blocked/store")
	if blocked.Allowed {
		t.Fatal("expected blocked path to be denied")
	}
}

func TestGateFailsOpenOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gate := NewGate("sitesignal-test", zap.NewNop())
	d := gate.Check(context.Background(), srv.URL+"/anything")
	if !d.Allowed || d.CrawlDelay != 0 {
		t.Fatalf("expected fail-open decision, got %+v", d)
	}
}

func TestGateFailsOpenOnUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	target := srv.URL
	srv.Close() // connection refused from here on

	gate := NewGate("sitesignal-test", zap.NewNop())
	d := gate.Check(context.Background(), target+"/page")
	if !d.Allowed {
		t.Fatal("expected fail-open decision for unreachable host")
	}
}

func TestGateSleepHonorsCancellation(t *testing.T) {
	gate := NewGate("sitesignal-test", zap.NewNop())

	if err := gate.Sleep(context.Background(), Decision{Allowed: true}); err != nil {
		t.Fatalf("zero delay should not error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gate.Sleep(ctx, Decision{Allowed: true, CrawlDelay: time.Minute})
	if err == nil {
		t.Fatal("expected canceled sleep to return an error")
	}
}
