// Package enrich defines the core types shared across the enrichment pipeline.
package enrich

import "time"

// Policy captures the per-invocation fetch and fallback knobs. It is created
// by the caller, never mutated, and never persisted.
type Policy struct {
	// AllowHeadlessFallback permits escalation to the headless render engine
	// when the plain fetch is blocked or exhausted.
	AllowHeadlessFallback bool
	// DebugMode disables silent fallback: conditions that would escalate to
	// headless rendering instead surface the degraded result or the error.
	DebugMode bool
	// MaxRetries bounds retries after the initial attempt. MaxRetries=2
	// means at most three requests hit the wire.
	MaxRetries int
}

// FetchResult is the outcome of an adaptive fetch. Immutable once returned.
type FetchResult struct {
	HTML               string
	FinalURL           string
	StatusCode         int
	UsedHeadlessRender bool
	// Degraded marks content returned despite a standing bot-detection
	// verdict (debug mode or fallback disabled).
	Degraded bool
}

// Categories buckets sitemap URLs by semantic category. Every URL belongs to
// exactly one bucket.
type Categories struct {
	Locations []string `json:"locations"`
	Contact   []string `json:"contact"`
	About     []string `json:"about"`
	Menu      []string `json:"menu"`
	Other     []string `json:"other"`
}

// SitemapIndex is the result of sitemap discovery for one base domain. It is
// computed once per enrichment run and not cached beyond it.
type SitemapIndex struct {
	Found       bool       `json:"found"`
	URLs        []string   `json:"urls"`
	Categorized Categories `json:"categorized"`
}

// LocationReport summarizes the location signal extracted for a business.
type LocationReport struct {
	NumLocations     int      `json:"num_locations"`
	LocationNames    []string `json:"location_names"`
	HasLocationsPage bool     `json:"has_locations_page"`
}

// EmailCandidate is a validated business email with a relevance score.
// Only strictly positive scores survive extraction.
type EmailCandidate struct {
	Address string `json:"address"`
	Score   int    `json:"score"`
}

// FeatureSet holds the ICP feature flags. Nil means "not analyzed", which is
// distinct from false.
type FeatureSet struct {
	HasSEO                *bool     `json:"has_seo"`
	HasWhatsApp           *bool     `json:"has_whatsapp"`
	HasReservation        *bool     `json:"has_reservation"`
	HasDirectOrdering     *bool     `json:"has_direct_ordering"`
	HasThirdPartyDelivery *bool     `json:"has_third_party_delivery"`
	AnalyzedAt            time.Time `json:"analyzed_at"`
}

// Record is the assembled enrichment output for one URL.
type Record struct {
	RunID              string           `json:"run_id"`
	URL                string           `json:"url"`
	FinalURL           string           `json:"final_url"`
	UsedHeadlessRender bool             `json:"used_headless_render"`
	Degraded           bool             `json:"degraded"`
	ContentHash        string           `json:"content_hash"`
	Sitemap            SitemapIndex     `json:"sitemap"`
	Locations          LocationReport   `json:"locations"`
	Emails             []EmailCandidate `json:"emails"`
	Features           FeatureSet       `json:"features"`
	StartedAt          time.Time        `json:"started_at"`
	FinishedAt         time.Time        `json:"finished_at"`
}
