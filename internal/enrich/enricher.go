package enrich

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitesignal/sitesignal/internal/progress"
)

// Enricher runs the full signal-extraction pipeline for one URL: fetch,
// hash, sitemap discovery, location detection, contact extraction, and
// feature analysis, in that order. Stages after the fetch are sequential by
// design so request pacing against the target site stays polite.
type Enricher struct {
	fetcher    Fetcher
	discoverer SitemapDiscoverer
	detector   LocationDetector
	extractor  ContactExtractor
	analyzer   FeatureAnalyzer
	hasher     Hasher
	clock      Clock
	ids        IDGenerator
	emitter    progress.Emitter
	logger     *zap.Logger
}

// NewEnricher wires the pipeline. All stage implementations are required;
// emitter and logger fall back to no-ops.
func NewEnricher(
	fetcher Fetcher,
	discoverer SitemapDiscoverer,
	detector LocationDetector,
	extractor ContactExtractor,
	analyzer FeatureAnalyzer,
	hasher Hasher,
	clock Clock,
	ids IDGenerator,
	emitter progress.Emitter,
	logger *zap.Logger,
) (*Enricher, error) {
	switch {
	case fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case discoverer == nil:
		return nil, fmt.Errorf("sitemap discoverer is required")
	case detector == nil:
		return nil, fmt.Errorf("location detector is required")
	case extractor == nil:
		return nil, fmt.Errorf("contact extractor is required")
	case analyzer == nil:
		return nil, fmt.Errorf("feature analyzer is required")
	case hasher == nil:
		return nil, fmt.Errorf("hasher is required")
	case clock == nil:
		return nil, fmt.Errorf("clock is required")
	case ids == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		fetcher:    fetcher,
		discoverer: discoverer,
		detector:   detector,
		extractor:  extractor,
		analyzer:   analyzer,
		hasher:     hasher,
		clock:      clock,
		ids:        ids,
		emitter:    emitter,
		logger:     logger,
	}, nil
}

// Enrich runs the pipeline for one business URL and assembles the Record.
// A fetch failure aborts the run; failures in later stages degrade to empty
// signals instead, since partial enrichment still has value.
func (e *Enricher) Enrich(ctx context.Context, rawURL string, policy Policy) (Record, error) {
	started := e.clock.Now()
	runID, err := e.ids.NewID()
	if err != nil {
		return Record{}, fmt.Errorf("generate run id: %w", err)
	}
	rawID, parseErr := uuid.Parse(runID)
	if parseErr == nil {
		ctx = WithRunID(ctx, rawID)
	} else {
		e.logger.Warn("run id is not a uuid; progress events disabled", zap.String("run_id", runID))
	}
	site := hostOf(rawURL)
	logger := e.logger.With(zap.String("run_id", runID), zap.String("site", site))

	e.emit(rawID, progress.Event{Stage: progress.StageRunStart, Site: site, URL: rawURL})

	res, err := e.fetcher.Fetch(ctx, rawURL, policy)
	if err != nil {
		e.emit(rawID, progress.Event{
			Stage: progress.StageRunError,
			Site:  site,
			URL:   rawURL,
			Dur:   e.clock.Now().Sub(started),
			Note:  err.Error(),
		})
		return Record{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	logger.Info("homepage fetched",
		zap.Bool("headless", res.UsedHeadlessRender),
		zap.Bool("degraded", res.Degraded),
		zap.Int("bytes", len(res.HTML)))

	hash, err := e.hasher.Hash([]byte(res.HTML))
	if err != nil {
		logger.Warn("content hash failed", zap.Error(err))
	}

	base := baseOf(res.FinalURL, rawURL)

	index := e.stageSitemap(ctx, rawID, site, base)
	locations := e.stageLocations(ctx, rawID, site, res.HTML, base, index, policy, logger)
	emails := e.stageEmails(ctx, rawID, site, res.HTML, base, index, policy)
	features := e.analyzer.Analyze(res.HTML, base)

	finished := e.clock.Now()
	e.emit(rawID, progress.Event{
		Stage: progress.StageRunDone,
		Site:  site,
		URL:   rawURL,
		Dur:   finished.Sub(started),
	})

	return Record{
		RunID:              runID,
		URL:                rawURL,
		FinalURL:           res.FinalURL,
		UsedHeadlessRender: res.UsedHeadlessRender,
		Degraded:           res.Degraded,
		ContentHash:        hash,
		Sitemap:            index,
		Locations:          locations,
		Emails:             emails,
		Features:           features,
		StartedAt:          started,
		FinishedAt:         finished,
	}, nil
}

func (e *Enricher) stageSitemap(ctx context.Context, runID uuid.UUID, site, base string) SitemapIndex {
	start := e.clock.Now()
	index := e.discoverer.Discover(ctx, base)
	e.emit(runID, progress.Event{
		Stage: progress.StageStageDone,
		Site:  site,
		Name:  "sitemap",
		Dur:   e.clock.Now().Sub(start),
	})
	return index
}

func (e *Enricher) stageLocations(ctx context.Context, runID uuid.UUID, site, html, base string, index SitemapIndex, policy Policy, logger *zap.Logger) LocationReport {
	start := e.clock.Now()
	report, err := e.detector.Detect(ctx, html, base, index, policy)
	if err != nil {
		logger.Warn("location detection failed", zap.Error(err))
	}
	e.emit(runID, progress.Event{
		Stage: progress.StageStageDone,
		Site:  site,
		Name:  "locations",
		Dur:   e.clock.Now().Sub(start),
	})
	if report.NumLocations > 0 {
		e.emit(runID, progress.Event{Stage: progress.StageSignalFound, Site: site, Name: "locations"})
	}
	return report
}

func (e *Enricher) stageEmails(ctx context.Context, runID uuid.UUID, site, html, base string, index SitemapIndex, policy Policy) []EmailCandidate {
	start := e.clock.Now()
	emails := e.extractor.Extract(ctx, html, base, index, policy)
	e.emit(runID, progress.Event{
		Stage: progress.StageStageDone,
		Site:  site,
		Name:  "emails",
		Dur:   e.clock.Now().Sub(start),
	})
	if len(emails) > 0 {
		e.emit(runID, progress.Event{Stage: progress.StageSignalFound, Site: site, Name: "emails"})
	}
	return emails
}

func (e *Enricher) emit(runID uuid.UUID, evt progress.Event) {
	if runID == uuid.Nil {
		return
	}
	evt.RunID = progress.UUIDToBytes(runID)
	evt.TS = e.clock.Now()
	e.emitter.Emit(evt)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

// baseOf derives the scheme://host base used for sitemap discovery and
// relative-link resolution, preferring the post-redirect URL.
func baseOf(finalURL, rawURL string) string {
	for _, candidate := range []string{finalURL, rawURL} {
		u, err := url.Parse(candidate)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
	}
	return rawURL
}
