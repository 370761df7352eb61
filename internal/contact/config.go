// Package contact harvests, validates, and ranks business email candidates.
package contact

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the scoring weights and fetch limits of the extractor.
type Config struct {
	// MaxContactPages bounds how many contact/about pages are fetched in
	// addition to the homepage.
	MaxContactPages int
	// OwnDomainScore is awarded when the email's domain is the site's own.
	OwnDomainScore int
	// GenericLocalScore is awarded for high-value generic local parts.
	GenericLocalScore int
	// FreeProviderPenalty is subtracted for consumer mail providers.
	FreeProviderPenalty int
	// PlaceholderPenalty is subtracted for placeholder-looking local parts.
	PlaceholderPenalty int
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		MaxContactPages:     v.GetInt("contact.max_contact_pages"),
		OwnDomainScore:      v.GetInt("contact.own_domain_score"),
		GenericLocalScore:   v.GetInt("contact.generic_local_score"),
		FreeProviderPenalty: v.GetInt("contact.free_provider_penalty"),
		PlaceholderPenalty:  v.GetInt("contact.placeholder_penalty"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.MaxContactPages < 0 {
		return fmt.Errorf("contact.max_contact_pages must be >= 0")
	}
	if c.OwnDomainScore <= 0 {
		return fmt.Errorf("contact.own_domain_score must be > 0")
	}
	if c.FreeProviderPenalty <= 0 || c.PlaceholderPenalty <= 0 {
		return fmt.Errorf("contact penalties must be > 0")
	}
	return nil
}

// DefaultConfig returns the stock weights.
func DefaultConfig() Config {
	return Config{
		MaxContactPages:     3,
		OwnDomainScore:      100,
		GenericLocalScore:   50,
		FreeProviderPenalty: 20,
		PlaceholderPenalty:  50,
	}
}
