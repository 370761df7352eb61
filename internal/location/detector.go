package location

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sitesignal/sitesignal/internal/enrich"
	"github.com/sitesignal/sitesignal/internal/robots"
)

// Gate is the robots compliance check consulted before the headless tier
// navigates anywhere. Plain fetches go through the fetcher, which carries its
// own gate; the renderer does not, so the cascade must ask first.
type Gate interface {
	Check(ctx context.Context, rawURL string) robots.Decision
	Sleep(ctx context.Context, d robots.Decision) error
}

// Detector implements enrich.LocationDetector as an ordered cascade of
// strategies; the first strategy reporting a match wins.
type Detector struct {
	fetcher    enrich.Fetcher
	renderer   enrich.Renderer
	gate       Gate
	cfg        Config
	logger     *zap.Logger
	strategies []strategy
}

// NewDetector constructs a Detector. The renderer may be nil, which skips the
// headless re-render tier.
func NewDetector(fetcher enrich.Fetcher, renderer enrich.Renderer, gate Gate, cfg Config, logger *zap.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if renderer != nil && gate == nil {
		return nil, errors.New("location detector requires a robots gate when a renderer is set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Detector{fetcher: fetcher, renderer: renderer, gate: gate, cfg: cfg, logger: logger}
	d.strategies = []strategy{
		homepageStructured{d},
		locationsPage{d},
		headlessRerender{d},
		homepageFallback{d},
	}
	return d, nil
}

// pageContext is the shared state the strategies read and enrich in turn.
type pageContext struct {
	ctx          context.Context
	homepage     *goquery.Document
	homepageText string
	baseURL      string
	index        enrich.SitemapIndex
	policy       enrich.Policy

	locationsURL     string
	hasLocationsPage bool
}

// strategy is one tier of the cascade. run reports (candidates, matched);
// the cascade stops at the first matched=true.
type strategy interface {
	name() string
	run(pc *pageContext) ([]string, bool)
}

// Detect runs the cascade over the homepage HTML and post-processes the
// winning candidate set. Parse failures degrade to an empty report.
func (d *Detector) Detect(ctx context.Context, html, baseURL string, index enrich.SitemapIndex, policy enrich.Policy) (enrich.LocationReport, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		d.logger.Warn("homepage parse failed", zap.String("url", baseURL), zap.Error(err))
		return enrich.LocationReport{}, nil
	}
	pc := &pageContext{
		ctx:          ctx,
		homepage:     doc,
		homepageText: doc.Text(),
		baseURL:      baseURL,
		index:        index,
		policy:       policy,
	}

	var names []string
	for _, s := range d.strategies {
		candidates, matched := s.run(pc)
		if matched {
			d.logger.Debug("location strategy matched",
				zap.String("strategy", s.name()),
				zap.Int("candidates", len(candidates)))
			names = candidates
			break
		}
	}

	names = d.finalize(names)
	report := enrich.LocationReport{
		NumLocations:     len(names),
		LocationNames:    names,
		HasLocationsPage: pc.hasLocationsPage,
	}
	// A single surviving address without a dedicated locations page is the
	// business's own headquarters, not a multi-location chain.
	if report.NumLocations == 1 && !report.HasLocationsPage {
		report.LocationNames = []string{}
	}
	return report, nil
}

// finalize dedupes (pre-format), filters false positives, formats, and
// dedupes again (post-format).
func (d *Detector) finalize(names []string) []string {
	cities := d.cfg.cities()
	names = dedupeNormalized(names)
	kept := make([]string, 0, len(names))
	for _, n := range names {
		if isFalsePositive(n, cities) {
			continue
		}
		formatted := formatName(n)
		if formatted == "" {
			continue
		}
		kept = append(kept, formatted)
	}
	return dedupeNormalized(kept)
}

// structuredCandidates scans the selector allow-list and parses matching
// elements for address-like lines.
func (d *Detector) structuredCandidates(doc *goquery.Document) ([]string, int) {
	var candidates []string
	hits := 0
	for _, sel := range d.cfg.selectors() {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			hits++
			for _, line := range strings.Split(s.Text(), "\n") {
				line = collapseWhitespace(line)
				if looksLikeAddress(line) {
					candidates = append(candidates, line)
				}
			}
		})
	}
	return candidates, hits
}
