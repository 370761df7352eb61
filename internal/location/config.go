// Package location implements the multi-strategy location signal extractor.
package location

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config captures the tunable heuristics of the location cascade.
type Config struct {
	// Selectors is the conservative allow-list of location-related DOM
	// selectors scanned during structured search.
	Selectors []string
	// MinStructuredHits is how many selector matches the homepage needs
	// before structured parsing is attempted.
	MinStructuredHits int
	// MultiLocationThreshold is how many distinct addresses confirm a
	// multi-location business straight from the homepage.
	MultiLocationThreshold int
	// KnownCities extends the false-positive filter's city anchor list.
	KnownCities []string
}

// DefaultSelectors is the structured-search allow-list.
var DefaultSelectors = []string{
	"address",
	"[itemtype*='PostalAddress']",
	".location",
	".locations",
	".location-item",
	".address",
	".store",
	".store-item",
	".branch",
	".office",
	".sucursal",
	".sede",
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Selectors:              v.GetStringSlice("location.selectors"),
		MinStructuredHits:      v.GetInt("location.min_structured_hits"),
		MultiLocationThreshold: v.GetInt("location.multi_location_threshold"),
		KnownCities:            v.GetStringSlice("location.known_cities"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.MinStructuredHits <= 0 {
		return fmt.Errorf("location.min_structured_hits must be > 0")
	}
	if c.MultiLocationThreshold <= 0 {
		return fmt.Errorf("location.multi_location_threshold must be > 0")
	}
	return nil
}

func (c Config) selectors() []string {
	if len(c.Selectors) == 0 {
		return DefaultSelectors
	}
	return c.Selectors
}

func (c Config) cities() []string {
	if len(c.KnownCities) == 0 {
		return defaultKnownCities
	}
	return append(append([]string(nil), defaultKnownCities...), c.KnownCities...)
}
