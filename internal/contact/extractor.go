package contact

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sitesignal/sitesignal/internal/enrich"
)

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// versionLocalRe rejects package-identifier artifacts like core-js@3.30.1.
var versionLocalRe = regexp.MustCompile(`^v?\d+(\.\d+)*$`)

// genericLocalParts are high-value business mailbox names.
var genericLocalParts = []string{
	"info", "contact", "contacto", "contatto", "contato",
	"sales", "ventas", "vendite", "vendas",
	"support", "soporte", "suporte",
	"hello", "hola", "ciao", "ola",
	"office", "admin", "reservations", "reservas", "booking", "orders", "team",
	"enquiries", "inquiries",
}

// freeProviders are consumer mail domains that dilute lead relevance.
var freeProviders = []string{
	"gmail.com", "yahoo.com", "hotmail.com", "outlook.com", "aol.com",
	"icloud.com", "live.com", "msn.com", "protonmail.com", "proton.me",
	"gmx.com", "gmx.net", "mail.com", "yandex.com", "yandex.ru", "zoho.com",
}

// placeholderLocals are local parts that almost never reach a person.
var placeholderLocals = []string{
	"name", "yourname", "firstname", "lastname", "user", "username",
	"email", "youremail", "sample", "test", "example",
	"noreply", "no-reply", "donotreply",
}

// placeholderDomains are template and documentation domains.
var placeholderDomains = []string{
	"example.com", "example.org", "example.net", "domain.com", "email.com",
	"yourdomain.com", "yourcompany.com", "mysite.com", "test.com",
	"sentry.io", "sentry.wixpress.com", "placeholder.com",
}

// imageExtensions catch retina-asset artifacts such as logo@2x.png.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico"}

// contactLinkKeywords drive anchor discovery when the sitemap has no
// contact bucket.
var contactLinkKeywords = []string{
	"contact", "contacto", "contatti", "contato",
	"about", "nosotros", "chi-siamo", "chi siamo", "sobre",
	"impressum",
}

// Extractor implements enrich.ContactExtractor.
type Extractor struct {
	fetcher enrich.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// NewExtractor constructs an Extractor. The fetcher may be nil, which limits
// harvesting to the supplied homepage HTML.
func NewExtractor(fetcher enrich.Fetcher, cfg Config, logger *zap.Logger) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, cfg: cfg, logger: logger}, nil
}

// Extract harvests email candidates from the homepage plus a bounded number
// of contact/about pages, then validates, deduplicates, and scores them.
// Only strictly positive scores are returned, best first.
func (e *Extractor) Extract(ctx context.Context, html, pageURL string, index enrich.SitemapIndex, policy enrich.Policy) []enrich.EmailCandidate {
	siteDomain := registeredDomain(pageURL)

	raw := emailRe.FindAllString(html, -1)
	for _, page := range e.contactPages(html, pageURL, index) {
		// Secondary pages are fetched plain; escalation is reserved for the
		// homepage fetch that precedes extraction.
		p := policy
		p.AllowHeadlessFallback = false
		res, err := e.fetcher.Fetch(ctx, page, p)
		if err != nil {
			e.logger.Debug("contact page fetch failed", zap.String("url", page), zap.Error(err))
			continue
		}
		raw = append(raw, emailRe.FindAllString(res.HTML, -1)...)
	}

	valid := make([]string, 0, len(raw))
	for _, addr := range raw {
		if isValidEmail(addr) {
			valid = append(valid, addr)
		}
	}

	candidates := make([]enrich.EmailCandidate, 0, len(valid))
	for _, addr := range dedupe(valid) {
		score := e.score(addr, siteDomain)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, enrich.EmailCandidate{Address: addr, Score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Address < candidates[j].Address
	})
	return candidates
}

// contactPages resolves up to MaxContactPages candidate URLs, preferring the
// sitemap's contact and about buckets over a homepage anchor scan.
func (e *Extractor) contactPages(html, pageURL string, index enrich.SitemapIndex) []string {
	if e.fetcher == nil || e.cfg.MaxContactPages == 0 {
		return nil
	}
	pages := append(append([]string(nil), index.Categorized.Contact...), index.Categorized.About...)
	if len(pages) == 0 {
		pages = discoverContactLinks(html, pageURL)
	}
	pages = dedupeURLs(pages, pageURL)
	if len(pages) > e.cfg.MaxContactPages {
		pages = pages[:e.cfg.MaxContactPages]
	}
	return pages
}

func discoverContactLinks(html, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := strings.ToLower(strings.Join(strings.Fields(a.Text()), " "))
		lowerHref := strings.ToLower(href)
		for _, kw := range contactLinkKeywords {
			if !strings.Contains(text, kw) && !strings.Contains(lowerHref, strings.ReplaceAll(kw, " ", "-")) {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			resolved := base.ResolveReference(ref)
			if resolved.Scheme != "http" && resolved.Scheme != "https" {
				return
			}
			if !strings.EqualFold(resolved.Host, base.Host) {
				return
			}
			out = append(out, resolved.String())
			return
		}
	})
	return out
}

func dedupeURLs(urls []string, self string) []string {
	seen := map[string]struct{}{strings.TrimSuffix(self, "/"): {}}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		key := strings.TrimSuffix(u, "/")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	return out
}

// isValidEmail rejects malformed addresses and the artifact classes the
// regex alone lets through.
func isValidEmail(addr string) bool {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return false
	}
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	tld := domain[dot+1:]
	if len(tld) < 2 || !isAlpha(tld) {
		return false
	}
	lowerDomain := strings.ToLower(domain)
	for _, placeholder := range placeholderDomains {
		if lowerDomain == placeholder || strings.HasSuffix(lowerDomain, "."+placeholder) {
			return false
		}
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lowerDomain, ext) || strings.HasSuffix(strings.ToLower(local), ext) {
			return false
		}
	}
	if versionLocalRe.MatchString(local) {
		return false
	}
	return true
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// dedupe keeps one canonical casing per case-insensitive address, preferring
// the variant with more lowercase letters.
func dedupe(addrs []string) []string {
	best := make(map[string]string, len(addrs))
	order := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		key := strings.ToLower(addr)
		current, ok := best[key]
		if !ok {
			best[key] = addr
			order = append(order, key)
			continue
		}
		if lowercaseCount(addr) > lowercaseCount(current) {
			best[key] = addr
		}
	}
	out := make([]string, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func lowercaseCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLower(r) {
			n++
		}
	}
	return n
}

func (e *Extractor) score(addr, siteDomain string) int {
	local, domain, _ := strings.Cut(strings.ToLower(addr), "@")
	score := 0
	if siteDomain != "" && (domain == siteDomain || strings.HasSuffix(domain, "."+siteDomain)) {
		score += e.cfg.OwnDomainScore
	}
	for _, generic := range genericLocalParts {
		if local == generic {
			score += e.cfg.GenericLocalScore
			break
		}
	}
	for _, free := range freeProviders {
		if domain == free {
			score -= e.cfg.FreeProviderPenalty
			break
		}
	}
	for _, placeholder := range placeholderLocals {
		if local == placeholder {
			score -= e.cfg.PlaceholderPenalty
			break
		}
	}
	return score
}

// registeredDomain extracts the site's own mail domain from its URL,
// dropping a leading www.
func registeredDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
