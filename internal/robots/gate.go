// Package robots implements the robots.txt compliance gate.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const (
	fetchTimeout = 5 * time.Second
	maxBodyBytes = 1 << 20
)

// Decision is the per-URL outcome of a robots check. It is recomputed for
// every fetch and never cached across calls.
type Decision struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// Gate fetches and evaluates robots.txt before every external fetch. On any
// fetch or parse failure it fails open: availability is prioritized over
// strict compliance.
type Gate struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewGate builds a Gate for the given user agent.
func NewGate(userAgent string, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		client:    &http.Client{Timeout: fetchTimeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

var allowAll = Decision{Allowed: true}

// Check fetches {scheme}://{host}/robots.txt and reports whether the target
// path may be fetched plus the declared crawl delay.
func (g *Gate) Check(ctx context.Context, rawURL string) Decision {
	if g == nil {
		return allowAll
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return allowAll
	}
	data, err := g.load(ctx, parsed)
	if err != nil {
		g.logger.Warn("robots fetch failed; allowing access",
			zap.String("host", parsed.Host), zap.Error(err))
		return allowAll
	}
	group := data.FindGroup(g.userAgent)
	if group == nil {
		return allowAll
	}
	return Decision{
		Allowed:    group.Test(targetPath(parsed)),
		CrawlDelay: group.CrawlDelay,
	}
}

// Sleep blocks for the decision's crawl delay, returning early if ctx is
// canceled.
func (g *Gate) Sleep(ctx context.Context, d Decision) error {
	if d.CrawlDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(d.CrawlDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("crawl delay interrupted: %w", ctx.Err())
	}
}

func (g *Gate) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := url.URL{
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   "/robots.txt",
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.Debug("failed to close robots response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("robots status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

func targetPath(parsed *url.URL) string {
	p := parsed.Path
	if p == "" {
		p = "/"
	}
	if parsed.RawQuery != "" {
		p += "?" + parsed.RawQuery
	}
	return strings.TrimSpace(p)
}
