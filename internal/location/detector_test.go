package location

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/sitesignal/sitesignal/internal/enrich"
	"github.com/sitesignal/sitesignal/internal/fetch"
	"github.com/sitesignal/sitesignal/internal/robots"
)

type allowGate struct{}

func (allowGate) Check(context.Context, string) robots.Decision {
	return robots.Decision{Allowed: true}
}

func (allowGate) Sleep(context.Context, robots.Decision) error { return nil }

type denyGate struct{ checked []string }

func (g *denyGate) Check(_ context.Context, rawURL string) robots.Decision {
	g.checked = append(g.checked, rawURL)
	return robots.Decision{Allowed: false}
}

func (*denyGate) Sleep(context.Context, robots.Decision) error { return nil }

type fakeFetcher struct {
	html string
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, _ enrich.Policy) (enrich.FetchResult, error) {
	f.urls = append(f.urls, rawURL)
	if f.err != nil {
		return enrich.FetchResult{}, f.err
	}
	return enrich.FetchResult{HTML: f.html, FinalURL: rawURL, StatusCode: 200}, nil
}

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(context.Context, string) (string, error) {
	f.calls++
	return f.html, f.err
}

func testLocationConfig() Config {
	return Config{MinStructuredHits: 3, MultiLocationThreshold: 3}
}

func newTestDetector(t *testing.T, fetcher enrich.Fetcher, renderer enrich.Renderer) *Detector {
	t.Helper()
	d, err := NewDetector(fetcher, renderer, allowGate{}, testLocationConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	return d
}

func TestDetectSingleLocationSuppression(t *testing.T) {
	html := `<html><body>
<p>Family bistro in the heart of town.</p>
<footer><address>500 Harbor Street, Miami FL 33130</address></footer>
</body></html>`

	d := newTestDetector(t, &fakeFetcher{err: errors.New("no page")}, nil)
	report, err := d.Detect(context.Background(), html, "https://bistro.example", enrich.SitemapIndex{}, enrich.Policy{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if report.NumLocations != 1 {
		t.Fatalf("expected numLocations=1, got %d", report.NumLocations)
	}
	if len(report.LocationNames) != 0 {
		t.Fatalf("single HQ must report empty location names, got %v", report.LocationNames)
	}
	if report.HasLocationsPage {
		t.Fatal("no locations page was discovered")
	}
}

func TestDetectMultiLocationFromHomepageStructured(t *testing.T) {
	html := `<html><body>
<div class="location">123 Main Street, Miami FL</div>
<div class="location">456 Ocean Avenue, Boston MA</div>
<div class="location">789 Pine Road, Austin TX</div>
</body></html>`

	d := newTestDetector(t, nil, nil)
	report, err := d.Detect(context.Background(), html, "https://chain.example", enrich.SitemapIndex{}, enrich.Policy{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if report.NumLocations != 3 {
		t.Fatalf("expected 3 locations, got %d (%v)", report.NumLocations, report.LocationNames)
	}
	if len(report.LocationNames) != 3 {
		t.Fatalf("expected 3 names, got %v", report.LocationNames)
	}
}

func TestDetectUsesLocationsPageFromSitemap(t *testing.T) {
	homepage := `<html><body><p>Welcome!</p></body></html>`
	locationsHTML := `<html><body>
<div class="store">12 North Street, Chicago IL</div>
<div class="store">98 South Avenue, Denver CO</div>
</body></html>`

	fetcher := &fakeFetcher{html: locationsHTML}
	d := newTestDetector(t, fetcher, nil)
	index := enrich.SitemapIndex{
		Found: true,
		Categorized: enrich.Categories{
			Locations: []string{"https://chain.example/locations"},
		},
	}

	report, err := d.Detect(context.Background(), homepage, "https://chain.example", index, enrich.Policy{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !report.HasLocationsPage {
		t.Fatal("expected locations page to be recorded")
	}
	if report.NumLocations != 2 {
		t.Fatalf("expected 2 locations, got %d (%v)", report.NumLocations, report.LocationNames)
	}
	if len(fetcher.urls) != 1 || fetcher.urls[0] != "https://chain.example/locations" {
		t.Fatalf("expected sitemap locations URL to be fetched, got %v", fetcher.urls)
	}
}

func TestDetectDiscoversLocationsLinkFromHomepage(t *testing.T) {
	homepage := `<html><body>
<nav><a href="/our-stores">Our Stores</a></nav>
<a href="https://facebook.com/biz">Find us on Facebook</a>
</body></html>`
	locationsHTML := `<html><body>
<div class="store">12 North Street, Chicago IL</div>
<div class="store">98 South Avenue, Denver CO</div>
</body></html>`

	fetcher := &fakeFetcher{html: locationsHTML}
	d := newTestDetector(t, fetcher, nil)

	report, err := d.Detect(context.Background(), homepage, "https://chain.example", enrich.SitemapIndex{}, enrich.Policy{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(fetcher.urls) != 1 || fetcher.urls[0] != "https://chain.example/our-stores" {
		t.Fatalf("expected same-host stores link to be fetched, got %v", fetcher.urls)
	}
	if report.NumLocations != 2 {
		t.Fatalf("expected 2 locations, got %d", report.NumLocations)
	}
}

func TestDetectHeadlessRerenderTier(t *testing.T) {
	homepage := `<html><body><a href="/locations">Locations</a></body></html>`
	emptyLocations := `<html><body><div id="app">Loading stores…</div></body></html>`
	rendered := `<html><body>
<div data-address="77 River Road, Portland OR"></div>
<div data-address="81 Lake Avenue, Seattle WA"></div>
</body></html>`

	fetcher := &fakeFetcher{html: emptyLocations}
	renderer := &fakeRenderer{html: rendered}
	d := newTestDetector(t, fetcher, renderer)

	report, err := d.Detect(context.Background(), homepage, "https://chain.example", enrich.SitemapIndex{},
		enrich.Policy{AllowHeadlessFallback: true})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if renderer.calls != 1 {
		t.Fatalf("expected one render call, got %d", renderer.calls)
	}
	if report.NumLocations != 2 {
		t.Fatalf("expected 2 locations from data attributes, got %d (%v)", report.NumLocations, report.LocationNames)
	}
	if !report.HasLocationsPage {
		t.Fatal("locations page should be recorded even when plain parse found nothing")
	}
}

func TestDetectNeverRendersRobotsDeniedURL(t *testing.T) {
	homepage := `<html><body><p>Welcome!</p></body></html>`
	fetcher := &fakeFetcher{err: fmt.Errorf("fetch https://chain.example/locations: %w", fetch.ErrRobotsDisallowed)}
	renderer := &fakeRenderer{html: `<html><body><div data-address="77 River Road, Portland OR"></div></body></html>`}
	gate := &denyGate{}

	d, err := NewDetector(fetcher, renderer, gate, testLocationConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	index := enrich.SitemapIndex{
		Found: true,
		Categorized: enrich.Categories{
			Locations: []string{"https://chain.example/locations"},
		},
	}

	report, err := d.Detect(context.Background(), homepage, "https://chain.example", index,
		enrich.Policy{AllowHeadlessFallback: true})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if renderer.calls != 0 {
		t.Fatalf("renderer navigated %d time(s) to a URL the robots gate denied", renderer.calls)
	}
	if len(gate.checked) == 0 || gate.checked[0] != "https://chain.example/locations" {
		t.Fatalf("gate was not consulted for the locations URL, got %v", gate.checked)
	}
	if report.HasLocationsPage {
		t.Fatal("a page that could not be fetched must not count as a locations page")
	}
}

func TestNewDetectorRequiresGateWithRenderer(t *testing.T) {
	_, err := NewDetector(nil, &fakeRenderer{}, nil, testLocationConfig(), zap.NewNop())
	if err == nil {
		t.Fatal("expected constructor error when a renderer is set without a gate")
	}
}

func TestDetectSkipsHeadlessInDebugMode(t *testing.T) {
	homepage := `<html><body><a href="/locations">Locations</a></body></html>`
	fetcher := &fakeFetcher{html: `<html><body><div id="app"></div></body></html>`}
	renderer := &fakeRenderer{html: `<html><body><div data-address="77 River Road, Portland OR"></div></body></html>`}
	d := newTestDetector(t, fetcher, renderer)

	_, err := d.Detect(context.Background(), homepage, "https://chain.example", enrich.SitemapIndex{},
		enrich.Policy{AllowHeadlessFallback: true, DebugMode: true})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if renderer.calls != 0 {
		t.Fatal("debug mode must not trigger headless re-rendering")
	}
}

func TestDetectFiltersBusinessHours(t *testing.T) {
	html := `<html><body>
<div class="location">Monday 9:00 - 17:00, walk-ins welcome</div>
<div class="location">123 Main Street, Miami FL</div>
<div class="location">456 Ocean Avenue, Boston MA</div>
<div class="location">789 Pine Road, Austin TX</div>
</body></html>`

	d := newTestDetector(t, nil, nil)
	report, err := d.Detect(context.Background(), html, "https://chain.example", enrich.SitemapIndex{}, enrich.Policy{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	for _, name := range report.LocationNames {
		if name == "Monday 9:00 - 17:00, walk-ins welcome" {
			t.Fatal("business-hours string must be filtered out")
		}
	}
	if report.NumLocations != 3 {
		t.Fatalf("expected 3 locations after filtering, got %d (%v)", report.NumLocations, report.LocationNames)
	}
}

func TestDetectEmptyOnUnparseableInput(t *testing.T) {
	d := newTestDetector(t, nil, nil)
	report, err := d.Detect(context.Background(), "", "https://example.com", enrich.SitemapIndex{}, enrich.Policy{})
	if err != nil {
		t.Fatalf("detect should degrade, not raise: %v", err)
	}
	if report.NumLocations != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}
