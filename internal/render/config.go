// Package render implements the stealth headless render engine.
package render

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config captures the knobs that influence headless rendering and the
// human-behavior simulation.
type Config struct {
	UserAgents        []string
	AcceptLanguages   []string
	NavigationTimeout time.Duration
	ExtractTimeout    time.Duration
	MinContentBytes   int
	ScrollMaxSteps    int
	ScrollStepPixels  int
	ClickProbability  float64
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		UserAgents:        v.GetStringSlice("render.user_agents"),
		AcceptLanguages:   v.GetStringSlice("render.accept_languages"),
		NavigationTimeout: v.GetDuration("render.navigation_timeout"),
		ExtractTimeout:    v.GetDuration("render.extract_timeout"),
		MinContentBytes:   v.GetInt("render.min_content_bytes"),
		ScrollMaxSteps:    v.GetInt("render.scroll_max_steps"),
		ScrollStepPixels:  v.GetInt("render.scroll_step_pixels"),
		ClickProbability:  v.GetFloat64("render.click_probability"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("render.navigation_timeout must be > 0")
	}
	if c.ExtractTimeout <= 0 {
		return fmt.Errorf("render.extract_timeout must be > 0")
	}
	if c.MinContentBytes < 0 {
		return fmt.Errorf("render.min_content_bytes must be >= 0")
	}
	if c.ScrollMaxSteps < 0 {
		return fmt.Errorf("render.scroll_max_steps must be >= 0")
	}
	if c.ScrollStepPixels <= 0 {
		return fmt.Errorf("render.scroll_step_pixels must be > 0")
	}
	if c.ClickProbability < 0 || c.ClickProbability > 1 {
		return fmt.Errorf("render.click_probability must be within [0,1]")
	}
	return nil
}
