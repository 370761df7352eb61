// Package sitemap implements sitemap discovery and URL categorization.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sitesignal/sitesignal/internal/enrich"
	"github.com/sitesignal/sitesignal/internal/robots"
)

const maxSitemapBytes = 8 << 20

// Gate is the robots check consulted before fetching the sitemap.
type Gate interface {
	Check(ctx context.Context, rawURL string) robots.Decision
}

// Config bounds sitemap discovery.
type Config struct {
	// MaxIndexFollow caps how many child sitemaps of a sitemap index are
	// fetched. The default of 1 keeps fan-out polite.
	MaxIndexFollow int
	FetchTimeout   time.Duration
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		MaxIndexFollow: v.GetInt("sitemap.max_index_follow"),
		FetchTimeout:   v.GetDuration("sitemap.fetch_timeout"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.MaxIndexFollow <= 0 {
		return fmt.Errorf("sitemap.max_index_follow must be > 0")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("sitemap.fetch_timeout must be > 0")
	}
	return nil
}

// Discoverer implements enrich.SitemapDiscoverer. All network and parse
// failures degrade to a not-found index; discovery never raises.
type Discoverer struct {
	client *http.Client
	gate   Gate
	cfg    Config
	logger *zap.Logger
}

// NewDiscoverer constructs a Discoverer.
func NewDiscoverer(gate Gate, cfg Config, logger *zap.Logger) (*Discoverer, error) {
	if gate == nil {
		return nil, fmt.Errorf("sitemap discoverer requires a robots gate")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sitemap config: %w", err)
	}
	return &Discoverer{
		client: &http.Client{Timeout: cfg.FetchTimeout},
		gate:   gate,
		cfg:    cfg,
		logger: logger,
	}, nil
}

var notFound = enrich.SitemapIndex{}

// Discover attempts /sitemap.xml at the site root and categorizes every URL.
func (d *Discoverer) Discover(ctx context.Context, baseURL string) enrich.SitemapIndex {
	root, err := siteRoot(baseURL)
	if err != nil {
		return notFound
	}
	sitemapURL := root + "/sitemap.xml"
	if !d.gate.Check(ctx, sitemapURL).Allowed {
		d.logger.Debug("sitemap disallowed by robots", zap.String("url", sitemapURL))
		return notFound
	}
	body, err := d.get(ctx, sitemapURL)
	if err != nil {
		d.logger.Debug("sitemap fetch failed", zap.String("url", sitemapURL), zap.Error(err))
		return notFound
	}

	urls, err := d.parse(ctx, body)
	if err != nil {
		d.logger.Debug("sitemap parse failed", zap.String("url", sitemapURL), zap.Error(err))
		return notFound
	}
	if len(urls) == 0 {
		return notFound
	}
	return enrich.SitemapIndex{
		Found:       true,
		URLs:        urls,
		Categorized: Categorize(urls),
	}
}

// parse reads either a urlset or a sitemap index. For an index, only the
// first MaxIndexFollow child sitemaps are followed.
func (d *Discoverer) parse(ctx context.Context, body []byte) ([]string, error) {
	var index sitemapIndexDoc
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		var urls []string
		followed := 0
		for _, child := range index.Sitemaps {
			if followed >= d.cfg.MaxIndexFollow {
				break
			}
			followed++
			childBody, err := d.get(ctx, child.Loc)
			if err != nil {
				d.logger.Debug("child sitemap fetch failed", zap.String("url", child.Loc), zap.Error(err))
				continue
			}
			var set urlSetDoc
			if err := xml.Unmarshal(childBody, &set); err != nil {
				d.logger.Debug("child sitemap parse failed", zap.String("url", child.Loc), zap.Error(err))
				continue
			}
			for _, u := range set.URLs {
				if u.Loc != "" {
					urls = append(urls, u.Loc)
				}
			}
		}
		return urls, nil
	}

	var set urlSetDoc
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("unmarshal urlset: %w", err)
	}
	urls := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if u.Loc != "" {
			urls = append(urls, u.Loc)
		}
	}
	return urls, nil
}

func (d *Discoverer) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new sitemap request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			d.logger.Debug("failed to close sitemap response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sitemap status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("read sitemap body: %w", err)
	}
	return body, nil
}

func siteRoot(baseURL string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("base url %q missing scheme or host", baseURL)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

type urlSetDoc struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []locEntry `xml:"url"`
}

type sitemapIndexDoc struct {
	XMLName  xml.Name   `xml:"sitemapindex"`
	Sitemaps []locEntry `xml:"sitemap"`
}

type locEntry struct {
	Loc string `xml:"loc"`
}
