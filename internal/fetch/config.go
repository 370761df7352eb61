// Package fetch implements the adaptive fetch controller.
package fetch

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob that influences plain fetching and bot-detection
// classification. All values originate from Viper so the pipeline can be
// configured via files, env vars, or CLI flags.
type Config struct {
	UserAgents       []string
	AcceptLanguages  []string
	RequestTimeout   time.Duration
	BackoffBase      time.Duration
	BackoffCap       time.Duration
	HostQPS          float64
	MinBodyBytes     int
	WeakSignalMax    int
	BuilderPlatforms []string
	KnownGoodDomains []string
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		UserAgents:       dedupeStrings(v.GetStringSlice("fetch.user_agents")),
		AcceptLanguages:  dedupeStrings(v.GetStringSlice("fetch.accept_languages")),
		RequestTimeout:   v.GetDuration("fetch.request_timeout"),
		BackoffBase:      v.GetDuration("fetch.backoff_base"),
		BackoffCap:       v.GetDuration("fetch.backoff_cap"),
		HostQPS:          v.GetFloat64("fetch.host_qps"),
		MinBodyBytes:     v.GetInt("botdetect.min_body_bytes"),
		WeakSignalMax:    v.GetInt("botdetect.weak_signal_max"),
		BuilderPlatforms: dedupeStrings(v.GetStringSlice("botdetect.builder_platforms")),
		KnownGoodDomains: dedupeStrings(v.GetStringSlice("botdetect.known_good_domains")),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("fetch.request_timeout must be > 0")
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("fetch.backoff_base must be > 0")
	}
	if c.BackoffCap < c.BackoffBase {
		return fmt.Errorf("fetch.backoff_cap must be >= fetch.backoff_base")
	}
	if c.HostQPS < 0 {
		return fmt.Errorf("fetch.host_qps must be >= 0")
	}
	if c.MinBodyBytes < 0 {
		return fmt.Errorf("botdetect.min_body_bytes must be >= 0")
	}
	if c.WeakSignalMax < 0 {
		return fmt.Errorf("botdetect.weak_signal_max must be >= 0")
	}
	return nil
}

func dedupeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
