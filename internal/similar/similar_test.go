package similar

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitesignal/sitesignal/internal/enrich"
)

func TestMatchExactPrefixContainment(t *testing.T) {
	target := Business{ID: "1", Name: "Starbucks"}
	candidates := []Business{
		{ID: "2", Name: "Starbucks Downtown"},
		{ID: "3", Name: "STARBUCKS"},
		{ID: "4", Name: "Star Bar"},
	}
	got := Match(target, candidates, Options{})
	require.Len(t, got.ExactMatches, 2)
	require.Equal(t, "2", got.ExactMatches[0].ID)
	require.Equal(t, "3", got.ExactMatches[1].ID)
}

func TestMatchSkipsSelfAndEnriched(t *testing.T) {
	target := Business{ID: "1", Name: "La Casa"}
	candidates := []Business{
		{ID: "1", Name: "La Casa"},
		{ID: "2", Name: "La Casa", Enriched: true},
		{ID: "3", Name: "La Casa"},
	}
	got := Match(target, candidates, Options{})
	require.Len(t, got.ExactMatches, 1)
	require.Equal(t, "3", got.ExactMatches[0].ID)
}

func TestMatchSameCountryOnly(t *testing.T) {
	target := Business{ID: "1", Name: "La Casa", Country: "MX"}
	candidates := []Business{
		{ID: "2", Name: "La Casa", Country: "ES"},
		{ID: "3", Name: "La Casa", Country: "mx"},
	}
	got := Match(target, candidates, Options{SameCountryOnly: true})
	require.Len(t, got.ExactMatches, 1)
	require.Equal(t, "3", got.ExactMatches[0].ID)
}

func TestMatchFuzzyThresholdInclusive(t *testing.T) {
	// "night" vs "nacht" share one of four bigrams: 2*1/8 = 0.25
	require.InDelta(t, 0.25, diceCoefficient("night", "nacht"), 1e-9)

	target := Business{ID: "1", Name: "night"}
	candidates := []Business{{ID: "2", Name: "nacht"}}

	at := Match(target, candidates, Options{MinSimilarity: 0.25})
	require.Len(t, at.FuzzyMatches, 1, "score equal to threshold must match")

	above := Match(target, candidates, Options{MinSimilarity: 0.26})
	require.Empty(t, above.FuzzyMatches)
}

func TestMatchFuzzyTypo(t *testing.T) {
	target := Business{ID: "1", Name: "Trattoria Bella Napoli"}
	candidates := []Business{
		{ID: "2", Name: "Trattoria Bela Napoli"},
		{ID: "3", Name: "Burger Palace"},
	}
	got := Match(target, candidates, Options{})
	require.Empty(t, got.ExactMatches)
	require.Len(t, got.FuzzyMatches, 1)
	require.Equal(t, "2", got.FuzzyMatches[0].ID)
}

func TestDiceCoefficient(t *testing.T) {
	require.Equal(t, 1.0, diceCoefficient("la casa", "la casa"))
	require.Equal(t, 0.0, diceCoefficient("a", "abc"))
	require.Equal(t, 0.0, diceCoefficient("abcd", "wxyz"))
}

func TestCloneNeverCopiesLocationFields(t *testing.T) {
	yes := true
	source := Business{
		ID:               "src",
		Emails:           []enrich.EmailCandidate{{Address: "info@foo.com", Score: 150}},
		DecisionMakers:   []string{"Ana Torres"},
		Website:          "https://foo.com",
		Phone:            "+52 55 1234 5678",
		Category:         "restaurant",
		Features:         enrich.FeatureSet{HasSEO: &yes},
		NumLocations:     5,
		LocationNames:    []string{"Centro", "Polanco"},
		HasLocationsPage: true,
	}

	patch := Clone(source)
	require.Equal(t, source.Emails, patch.Emails)
	require.Equal(t, source.Website, patch.Website)
	require.Equal(t, source.Phone, patch.Phone)
	require.Equal(t, source.Category, patch.Category)
	require.Equal(t, source.Features, patch.Features)

	// mutation of the patch must not reach the source
	patch.Emails[0].Address = "changed@foo.com"
	require.Equal(t, "info@foo.com", source.Emails[0].Address)
}
