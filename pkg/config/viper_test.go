package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/sitesignal/sitesignal/internal/contact"
	"github.com/sitesignal/sitesignal/internal/fetch"
	"github.com/sitesignal/sitesignal/internal/location"
	"github.com/sitesignal/sitesignal/internal/render"
	"github.com/sitesignal/sitesignal/internal/sitemap"
)

// Every package-level LoadConfig must validate cleanly on stock defaults.
func TestDefaultsSatisfyEveryLoader(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	fetchCfg, err := fetch.LoadConfig(v)
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, fetchCfg.RequestTimeout)

	renderCfg, err := render.LoadConfig(v)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, renderCfg.NavigationTimeout)

	sitemapCfg, err := sitemap.LoadConfig(v)
	require.NoError(t, err)
	require.Equal(t, 1, sitemapCfg.MaxIndexFollow)

	locationCfg, err := location.LoadConfig(v)
	require.NoError(t, err)
	require.Equal(t, 3, locationCfg.MultiLocationThreshold)

	contactCfg, err := contact.LoadConfig(v)
	require.NoError(t, err)
	require.Equal(t, 3, contactCfg.MaxContactPages)
}

func TestOverrideWins(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("fetch.request_timeout", "20s")

	cfg, err := fetch.LoadConfig(v)
	require.NoError(t, err)
	require.Equal(t, 20*time.Second, cfg.RequestTimeout)
}
