package location

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// homepageStructured is tier 1: conservative selector scan of the homepage.
// It matches only when enough selector hits yield enough distinct addresses
// to confirm a multi-location business outright.
type homepageStructured struct{ d *Detector }

func (homepageStructured) name() string { return "homepage_structured" }

func (s homepageStructured) run(pc *pageContext) ([]string, bool) {
	candidates, hits := s.d.structuredCandidates(pc.homepage)
	if hits < s.d.cfg.MinStructuredHits {
		return nil, false
	}
	distinct := dedupeNormalized(candidates)
	if len(distinct) >= s.d.cfg.MultiLocationThreshold {
		return distinct, true
	}
	return nil, false
}

// locationsPage is tier 2: find a dedicated locations page (sitemap bucket
// first, then multilingual homepage link scan), fetch it, and parse with
// structured selectors falling back to whole-page regex.
type locationsPage struct{ d *Detector }

func (locationsPage) name() string { return "locations_page" }

// locationLinkKeywords are matched against anchor text and hrefs.
var locationLinkKeywords = []string{
	"locations", "location", "our stores", "find us", "visit us", "stores",
	"sucursales", "ubicaciones", "tiendas", "donde estamos",
	"sedi", "punti vendita", "dove siamo",
	"lojas", "onde estamos", "unidades",
}

// excludedLinkHosts prevents social and map links from being mistaken for a
// locations page.
var excludedLinkHosts = []string{
	"facebook.com", "instagram.com", "twitter.com", "x.com", "linkedin.com",
	"youtube.com", "tiktok.com", "maps.google.com", "goo.gl", "wa.me",
}

func (s locationsPage) run(pc *pageContext) ([]string, bool) {
	target := s.resolveURL(pc)
	if target == "" {
		return nil, false
	}
	pc.locationsURL = target

	if s.d.fetcher == nil {
		return nil, false
	}
	// The dedicated page is fetched plain; tier 3 owns headless re-rendering.
	policy := pc.policy
	policy.AllowHeadlessFallback = false
	res, err := s.d.fetcher.Fetch(pc.ctx, target, policy)
	if err != nil {
		s.d.logger.Debug("locations page fetch failed", zap.String("url", target), zap.Error(err))
		return nil, false
	}
	pc.hasLocationsPage = true

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		return nil, false
	}
	candidates, _ := s.d.structuredCandidates(doc)
	if len(candidates) == 0 {
		candidates = extractAddressLines(doc.Text())
	}
	return candidates, len(candidates) > 0
}

// resolveURL prefers the sitemap's locations bucket, else scans homepage
// anchors for location keywords, excluding social and external domains.
func (s locationsPage) resolveURL(pc *pageContext) string {
	if len(pc.index.Categorized.Locations) > 0 {
		return pc.index.Categorized.Locations[0]
	}
	base, err := url.Parse(pc.baseURL)
	if err != nil {
		return ""
	}
	var found string
	pc.homepage.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		text := strings.ToLower(collapseWhitespace(a.Text()))
		lowerHref := strings.ToLower(href)
		for _, kw := range locationLinkKeywords {
			if !strings.Contains(text, kw) && !strings.Contains(lowerHref, strings.ReplaceAll(kw, " ", "-")) {
				continue
			}
			resolved := resolveHref(base, href)
			if resolved == "" {
				continue
			}
			found = resolved
			return false
		}
		return true
	})
	return found
}

func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	host := strings.ToLower(resolved.Host)
	for _, excluded := range excludedLinkHosts {
		if host == excluded || strings.HasSuffix(host, "."+excluded) {
			return ""
		}
	}
	// stay on the business's own site
	if !strings.EqualFold(resolved.Host, base.Host) {
		return ""
	}
	return resolved.String()
}

// headlessRerender is tier 3: re-render the locations page with JavaScript
// and re-extract with progressively more permissive passes.
type headlessRerender struct{ d *Detector }

func (headlessRerender) name() string { return "headless_rerender" }

func (s headlessRerender) run(pc *pageContext) ([]string, bool) {
	if s.d.renderer == nil || pc.locationsURL == "" {
		return nil, false
	}
	if !pc.policy.AllowHeadlessFallback || pc.policy.DebugMode {
		return nil, false
	}
	// The renderer has no robots awareness of its own, so the gate is
	// consulted (and its crawl delay honored) before navigation.
	decision := s.d.gate.Check(pc.ctx, pc.locationsURL)
	if !decision.Allowed {
		s.d.logger.Debug("locations page render disallowed by robots",
			zap.String("url", pc.locationsURL))
		return nil, false
	}
	if err := s.d.gate.Sleep(pc.ctx, decision); err != nil {
		return nil, false
	}
	html, err := s.d.renderer.Render(pc.ctx, pc.locationsURL)
	if err != nil {
		s.d.logger.Debug("locations page render failed",
			zap.String("url", pc.locationsURL), zap.Error(err))
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}

	// most precise first, raw text scan last
	passes := []func() []string{
		func() []string { return dataAttributeCandidates(doc) },
		func() []string { c, _ := s.d.structuredCandidates(doc); return c },
		func() []string { return embeddedJSONCandidates(doc) },
		func() []string { return extractAddressLines(html) },
		func() []string { return textScanCandidates(doc) },
	}
	for _, pass := range passes {
		if candidates := pass(); len(candidates) > 0 {
			return candidates, true
		}
	}
	return nil, false
}

func dataAttributeCandidates(doc *goquery.Document) []string {
	var out []string
	doc.Find("[data-address], [data-location], [data-store-address]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"data-address", "data-location", "data-store-address"} {
			if v, ok := s.Attr(attr); ok {
				v = collapseWhitespace(v)
				if looksLikeAddress(v) {
					out = append(out, v)
				}
			}
		}
	})
	return out
}

// embeddedJSONCandidates walks ld+json script blocks for street addresses.
func embeddedJSONCandidates(doc *goquery.Document) []string {
	var out []string
	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		out = append(out, jsonAddresses(payload)...)
	})
	return out
}

func jsonAddresses(node any) []string {
	var out []string
	switch v := node.(type) {
	case map[string]any:
		if street, ok := v["streetAddress"].(string); ok {
			addr := street
			if locality, ok := v["addressLocality"].(string); ok {
				addr += ", " + locality
			}
			out = append(out, collapseWhitespace(addr))
		}
		for _, child := range v {
			out = append(out, jsonAddresses(child)...)
		}
	case []any:
		for _, child := range v {
			out = append(out, jsonAddresses(child)...)
		}
	}
	return out
}

func textScanCandidates(doc *goquery.Document) []string {
	var out []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		line = collapseWhitespace(line)
		if looksLikeAddress(line) {
			out = append(out, line)
		}
	}
	return out
}

// homepageFallback is tier 4: no locations page was found, so apply the
// structured and regex searches directly to the homepage.
type homepageFallback struct{ d *Detector }

func (homepageFallback) name() string { return "homepage_fallback" }

func (s homepageFallback) run(pc *pageContext) ([]string, bool) {
	candidates, _ := s.d.structuredCandidates(pc.homepage)
	if len(candidates) == 0 {
		candidates = extractAddressLines(pc.homepageText)
	}
	return candidates, len(candidates) > 0
}
