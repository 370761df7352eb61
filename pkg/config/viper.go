// Package config initializes the application's configuration. It uses the
// Viper library to read settings from a config file and environment
// variables, providing a unified configuration system for every pipeline
// package.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// InitConfig initializes the application's configuration using Viper. It sets
// defaults for every key the pipeline packages read, defines configuration
// search paths, and enables environment-variable overrides. Call it once at
// startup, before any package loads its Config.
func InitConfig() error {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/sitesignal/")
	viper.AddConfigPath("$HOME/.sitesignal")

	setDefaults(viper.GetViper())

	// e.g. SITESIGNAL_FETCH_REQUEST_TIMEOUT=20s
	viper.SetEnvPrefix("SITESIGNAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// proceed with defaults and environment variables
			return nil
		}
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// plain fetching
	v.SetDefault("fetch.user_agents", []string{}) // empty falls back to the built-in pool
	v.SetDefault("fetch.accept_languages", []string{})
	v.SetDefault("fetch.request_timeout", 15*time.Second)
	v.SetDefault("fetch.backoff_base", 1*time.Second)
	v.SetDefault("fetch.backoff_cap", 30*time.Second)
	v.SetDefault("fetch.host_qps", 0.5)

	// bot-detection classification
	v.SetDefault("botdetect.min_body_bytes", 500)
	v.SetDefault("botdetect.weak_signal_max", 2)
	v.SetDefault("botdetect.builder_platforms", []string{})
	v.SetDefault("botdetect.known_good_domains", []string{})

	// headless rendering
	v.SetDefault("render.user_agents", []string{})
	v.SetDefault("render.accept_languages", []string{})
	v.SetDefault("render.navigation_timeout", 30*time.Second)
	v.SetDefault("render.extract_timeout", 10*time.Second)
	v.SetDefault("render.min_content_bytes", 100)
	v.SetDefault("render.scroll_max_steps", 4)
	v.SetDefault("render.scroll_step_pixels", 600)
	v.SetDefault("render.click_probability", 0.3)

	// sitemap discovery
	v.SetDefault("sitemap.max_index_follow", 1)
	v.SetDefault("sitemap.fetch_timeout", 10*time.Second)

	// location extraction
	v.SetDefault("location.selectors", []string{})
	v.SetDefault("location.min_structured_hits", 3)
	v.SetDefault("location.multi_location_threshold", 3)
	v.SetDefault("location.known_cities", []string{})

	// contact extraction and scoring
	v.SetDefault("contact.max_contact_pages", 3)
	v.SetDefault("contact.own_domain_score", 100)
	v.SetDefault("contact.generic_local_score", 50)
	v.SetDefault("contact.free_provider_penalty", 20)
	v.SetDefault("contact.placeholder_penalty", 50)

	// similarity matching
	v.SetDefault("similar.min_similarity", 0.8)
	v.SetDefault("similar.same_country_only", false)

	// pipeline orchestration
	v.SetDefault("enrich.concurrency", 4)
	v.SetDefault("enrich.max_retries", 2)
	v.SetDefault("enrich.allow_headless_fallback", true)

	// headless browser binary; empty uses the chromedp default lookup
	v.SetDefault("browser.exec_path", "")

	v.SetDefault("log.development", false)
}

// SetDefaults applies the stock defaults to an arbitrary Viper instance,
// which keeps package-level LoadConfig tests independent of InitConfig.
func SetDefaults(v *viper.Viper) {
	setDefaults(v)
}
