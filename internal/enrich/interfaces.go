package enrich

import (
	"context"
	"time"
)

// Fetcher retrieves a page with retry, bot-detection classification, and
// optional headless escalation behind it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, policy Policy) (FetchResult, error)
}

// Renderer obtains JavaScript-rendered DOM content via a headless browser.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
}

// SitemapDiscoverer locates and categorizes the sitemap for a base URL.
// Failures degrade to a not-found index rather than an error.
type SitemapDiscoverer interface {
	Discover(ctx context.Context, baseURL string) SitemapIndex
}

// LocationDetector extracts the location signal from a fetched homepage.
type LocationDetector interface {
	Detect(ctx context.Context, html, baseURL string, index SitemapIndex, policy Policy) (LocationReport, error)
}

// ContactExtractor harvests, validates, and scores candidate emails.
type ContactExtractor interface {
	Extract(ctx context.Context, html, pageURL string, index SitemapIndex, policy Policy) []EmailCandidate
}

// FeatureAnalyzer computes the ICP feature flags from rendered HTML.
type FeatureAnalyzer interface {
	Analyze(html, pageURL string) FeatureSet
}

// Hasher computes digests for content provenance.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
