package sitemap

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sitesignal/sitesignal/internal/robots"
)

type stubGate struct{ allowed bool }

func (g stubGate) Check(context.Context, string) robots.Decision {
	return robots.Decision{Allowed: g.allowed}
}

func testDiscoverer(t *testing.T, gate Gate) *Discoverer {
	t.Helper()
	d, err := NewDiscoverer(gate, Config{MaxIndexFollow: 1, FetchTimeout: 5 * time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("new discoverer: %v", err)
	}
	return d
}

func TestDiscoverParsesURLSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/locations</loc></url>
  <url><loc>https://example.com/contact</loc></url>
  <url><loc>https://example.com/blog</loc></url>
</urlset>`)
	}))
	defer srv.Close()

	idx := testDiscoverer(t, stubGate{allowed: true}).Discover(context.Background(), srv.URL+"/some/page")
	if !idx.Found {
		t.Fatal("expected sitemap to be found")
	}
	if len(idx.URLs) != 3 {
		t.Fatalf("expected 3 urls, got %d", len(idx.URLs))
	}
	if len(idx.Categorized.Locations) != 1 || len(idx.Categorized.Contact) != 1 || len(idx.Categorized.Other) != 1 {
		t.Fatalf("unexpected categorization: %+v", idx.Categorized)
	}
}

func TestDiscoverFollowsOnlyFirstIndexChild(t *testing.T) {
	var childFetches atomic.Int32
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/sitemap-pages.xml</loc></sitemap>
  <sitemap><loc>%s/sitemap-posts.xml</loc></sitemap>
</sitemapindex>`, srvURL, srvURL)
		case "/sitemap-pages.xml":
			childFetches.Add(1)
			fmt.Fprint(w, `<urlset><url><loc>https://example.com/menu</loc></url></urlset>`)
		case "/sitemap-posts.xml":
			childFetches.Add(1)
			fmt.Fprint(w, `<urlset><url><loc>https://example.com/post</loc></url></urlset>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	idx := testDiscoverer(t, stubGate{allowed: true}).Discover(context.Background(), srv.URL)
	if !idx.Found {
		t.Fatal("expected sitemap index to be found")
	}
	if got := childFetches.Load(); got != 1 {
		t.Fatalf("expected exactly 1 child sitemap fetch, got %d", got)
	}
	if len(idx.URLs) != 1 || idx.URLs[0] != "https://example.com/menu" {
		t.Fatalf("unexpected urls: %v", idx.URLs)
	}
}

func TestDiscoverDegradesGracefully(t *testing.T) {
	t.Run("robots disallows", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			t.Error("no request should be issued when robots disallows")
		}))
		defer srv.Close()
		idx := testDiscoverer(t, stubGate{allowed: false}).Discover(context.Background(), srv.URL)
		if idx.Found {
			t.Fatal("expected not-found index")
		}
	})

	t.Run("http 404", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
		defer srv.Close()
		if idx := testDiscoverer(t, stubGate{allowed: true}).Discover(context.Background(), srv.URL); idx.Found {
			t.Fatal("expected not-found index")
		}
	})

	t.Run("malformed xml", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "this is not xml <<<")
		}))
		defer srv.Close()
		if idx := testDiscoverer(t, stubGate{allowed: true}).Discover(context.Background(), srv.URL); idx.Found {
			t.Fatal("expected not-found index")
		}
	})

	t.Run("bad base url", func(t *testing.T) {
		if idx := testDiscoverer(t, stubGate{allowed: true}).Discover(context.Background(), "not-a-url"); idx.Found {
			t.Fatal("expected not-found index")
		}
	})
}
