package fetch

import (
	"math/rand/v2"
	"net/http"
)

// DefaultUserAgents is a small fixed pool of plausible desktop browser agents
// rotated across attempts.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
}

// DefaultAcceptLanguages is the Accept-Language rotation pool.
var DefaultAcceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-US,en;q=0.8,es;q=0.6",
	"es-ES,es;q=0.9,en;q=0.7",
	"pt-BR,pt;q=0.9,en;q=0.6",
}

// headerProfile is the per-attempt browser identity.
type headerProfile struct {
	userAgent      string
	acceptLanguage string
}

type headerPool struct {
	userAgents      []string
	acceptLanguages []string
}

func newHeaderPool(userAgents, acceptLanguages []string) headerPool {
	if len(userAgents) == 0 {
		userAgents = DefaultUserAgents
	}
	if len(acceptLanguages) == 0 {
		acceptLanguages = DefaultAcceptLanguages
	}
	return headerPool{userAgents: userAgents, acceptLanguages: acceptLanguages}
}

func (p headerPool) pick() headerProfile {
	return headerProfile{
		userAgent:      p.userAgents[rand.IntN(len(p.userAgents))],
		acceptLanguage: p.acceptLanguages[rand.IntN(len(p.acceptLanguages))],
	}
}

// apply sets the rotated identity plus standard browser-like headers.
func (h headerProfile) apply(hdr *http.Header) {
	hdr.Set("User-Agent", h.userAgent)
	hdr.Set("Accept-Language", h.acceptLanguage)
	hdr.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	hdr.Set("Upgrade-Insecure-Requests", "1")
	hdr.Set("Cache-Control", "no-cache")
}
