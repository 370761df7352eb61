package sitemap

import (
	"net/url"
	"strings"

	"github.com/sitesignal/sitesignal/internal/enrich"
)

// categoryPatterns is one ordered row of the categorizer table. Patterns are
// multilingual path keywords (English, Spanish, Italian, Portuguese).
type categoryPatterns struct {
	name     string
	patterns []string
}

// categoryTable is evaluated in order; the first matching category wins, so a
// URL like /contact/locations lands in locations, never in two buckets.
var categoryTable = []categoryPatterns{
	{"locations", []string{
		"locations", "location", "stores", "store-locator", "branches",
		"find-us", "visit-us", "our-stores",
		"sucursales", "sucursal", "ubicaciones", "ubicacion", "tiendas", "donde-estamos",
		"sedi", "locali", "punti-vendita", "dove-siamo",
		"lojas", "unidades", "onde-estamos",
	}},
	{"contact", []string{
		"contact", "contact-us", "get-in-touch",
		"contacto", "contactanos",
		"contatti", "contattaci",
		"contato", "fale-conosco", "atendimento",
	}},
	{"about", []string{
		"about", "about-us", "our-story", "team",
		"nosotros", "quienes-somos", "sobre-nosotros", "historia",
		"chi-siamo", "la-nostra-storia",
		"sobre", "sobre-nos", "quem-somos",
	}},
	{"menu", []string{
		"menu", "menus",
		"carta", "la-carta",
		"cardapio",
	}},
}

// Categorize assigns every URL to exactly one bucket.
func Categorize(urls []string) enrich.Categories {
	var cats enrich.Categories
	for _, raw := range urls {
		switch categorizeOne(raw) {
		case "locations":
			cats.Locations = append(cats.Locations, raw)
		case "contact":
			cats.Contact = append(cats.Contact, raw)
		case "about":
			cats.About = append(cats.About, raw)
		case "menu":
			cats.Menu = append(cats.Menu, raw)
		default:
			cats.Other = append(cats.Other, raw)
		}
	}
	return cats
}

func categorizeOne(raw string) string {
	segments := pathSegments(raw)
	if len(segments) == 0 {
		return "other"
	}
	for _, row := range categoryTable {
		for _, pattern := range row.patterns {
			if matchesSegments(segments, pattern) {
				return row.name
			}
		}
	}
	return "other"
}

func pathSegments(raw string) []string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	p := strings.ToLower(strings.Trim(parsed.Path, "/"))
	if p == "" {
		return nil
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		// strip extensions like .html
		if dot := strings.LastIndexByte(s, '.'); dot > 0 {
			segments[i] = s[:dot]
		}
	}
	return segments
}

func matchesSegments(segments []string, pattern string) bool {
	for _, seg := range segments {
		if seg == pattern {
			return true
		}
		if strings.Contains(pattern, "-") && strings.Contains(seg, pattern) {
			return true
		}
		// single-word patterns match hyphen/underscore tokens exactly
		for _, tok := range strings.FieldsFunc(seg, func(r rune) bool {
			return r == '-' || r == '_'
		}) {
			if tok == pattern {
				return true
			}
		}
	}
	return false
}
