// Package similar matches businesses by name and clones enrichment between
// confirmed duplicates.
package similar

import (
	"strings"

	"github.com/sitesignal/sitesignal/internal/enrich"
)

// DefaultMinSimilarity is the stock fuzzy-match threshold.
const DefaultMinSimilarity = 0.8

// Business is the matching view of a stored lead.
type Business struct {
	ID       string
	Name     string
	Country  string
	Enriched bool

	Emails         []enrich.EmailCandidate
	DecisionMakers []string
	Website        string
	Phone          string
	Category       string
	Features       enrich.FeatureSet

	NumLocations     int
	LocationNames    []string
	HasLocationsPage bool
}

// Options tune a match run.
type Options struct {
	// MinSimilarity is the inclusive fuzzy-match threshold; zero means
	// DefaultMinSimilarity.
	MinSimilarity float64
	// SameCountryOnly restricts candidates to the target's country.
	SameCountryOnly bool
}

func (o Options) threshold() float64 {
	if o.MinSimilarity <= 0 {
		return DefaultMinSimilarity
	}
	return o.MinSimilarity
}

// MatchResult splits matches by confidence: exact matches may be cloned
// automatically, fuzzy matches need external confirmation.
type MatchResult struct {
	ExactMatches []Business
	FuzzyMatches []Business
}

// Match scans candidates for businesses that appear to be the target under a
// different listing. The target itself and already-enriched candidates are
// skipped.
func Match(target Business, candidates []Business, opts Options) MatchResult {
	var result MatchResult
	targetName := normalizeName(target.Name)
	if targetName == "" {
		return result
	}
	for _, c := range candidates {
		if c.ID == target.ID || c.Enriched {
			continue
		}
		if opts.SameCountryOnly && !strings.EqualFold(c.Country, target.Country) {
			continue
		}
		name := normalizeName(c.Name)
		if name == "" {
			continue
		}
		if isExactMatch(targetName, name) {
			result.ExactMatches = append(result.ExactMatches, c)
			continue
		}
		if diceCoefficient(targetName, name) >= opts.threshold() {
			result.FuzzyMatches = append(result.FuzzyMatches, c)
		}
	}
	return result
}

// isExactMatch treats prefix containment in either direction as identity, so
// "Starbucks" and "Starbucks Downtown" refer to the same brand.
func isExactMatch(a, b string) bool {
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// diceCoefficient is the Sørensen–Dice bigram similarity of two normalized
// names, in [0, 1].
func diceCoefficient(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}
	bigrams := make(map[string]int)
	for i := 0; i < len(a)-1; i++ {
		bigrams[a[i:i+2]]++
	}
	matches := 0
	for i := 0; i < len(b)-1; i++ {
		bg := b[i : i+2]
		if bigrams[bg] > 0 {
			bigrams[bg]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(len(a)+len(b)-2)
}

// Patch is the set of fields copied by Clone. Location-derived fields are
// deliberately absent: they describe one physical listing, not the brand.
type Patch struct {
	Emails         []enrich.EmailCandidate
	DecisionMakers []string
	Website        string
	Phone          string
	Category       string
	Features       enrich.FeatureSet
}

// Clone builds the enrichment patch to apply from a confirmed duplicate.
func Clone(source Business) Patch {
	return Patch{
		Emails:         append([]enrich.EmailCandidate(nil), source.Emails...),
		DecisionMakers: append([]string(nil), source.DecisionMakers...),
		Website:        source.Website,
		Phone:          source.Phone,
		Category:       source.Category,
		Features:       source.Features,
	}
}
