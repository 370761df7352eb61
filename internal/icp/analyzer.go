// Package icp derives ideal-customer-profile features from rendered pages.
package icp

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sitesignal/sitesignal/internal/enrich"
)

// seoSignalsRequired is how many of the four on-page SEO elements (title,
// meta description, h1, structured data) must be present.
const seoSignalsRequired = 3

// whatsappPatterns match both link domains and plain mentions.
var whatsappPatterns = []string{"wa.me/", "api.whatsapp.com", "whatsapp"}

// reservationPhrases carry booking intent in four languages.
var reservationPhrases = []string{
	"book a table", "reserve a table", "table reservation", "make a reservation",
	"reservation", "reserve",
	"reservar mesa", "reserva tu mesa", "hacer una reserva", "reserva",
	"prenota un tavolo", "prenotazione", "prenota",
	"reserve uma mesa", "faca sua reserva", "fazer reserva",
}

// reservationPlatforms are named booking providers; any one of them is a
// strong indicator on its own.
var reservationPlatforms = []string{
	"opentable", "resy.com", "exploretock", "tock.com", "sevenrooms",
	"thefork", "eltenedor", "covermanager", "quandoo", "bookatable", "restoo",
}

// rightsReservedPhrases are the footer boilerplate that a naive "reserv"
// scan would misread as booking intent.
var rightsReservedPhrases = []string{
	"rights reserved", "derechos reservados", "diritti riservati", "direitos reservados",
}

// strongReservationIndicators alone can confirm the feature when boilerplate
// is present on the same page.
var strongReservationIndicators = append([]string{
	"book a table", "reserve a table", "table reservation",
	"reservar mesa", "prenota un tavolo", "reserve uma mesa",
}, reservationPlatforms...)

// deliveryPlatforms cover the regional third-party marketplaces.
var deliveryPlatforms = []string{
	// North America
	"doordash", "ubereats", "uber eats", "grubhub", "postmates", "skipthedishes",
	// Europe
	"deliveroo", "justeat", "just-eat", "just eat", "glovo", "takeaway.com", "wolt",
	// Latin America
	"rappi", "ifood", "pedidosya", "didifood",
	// Asia
	"foodpanda", "grab.com", "grabfood", "zomato", "swiggy", "meituan",
	// generic phrasing
	"delivery partner", "order on uber", "order on doordash",
}

// orderingKeywords are strong owned-commerce families; a bare "order" or
// "delivery" mention never qualifies.
var orderingKeywords = []string{
	"order online", "order now", "online ordering", "add to cart", "checkout",
	"start your order", "place your order",
	"pedir online", "pide online", "comprar ahora", "anadir al carrito",
	"ordina online", "aggiungi al carrello",
	"peca online", "pedido online", "adicionar ao carrinho", "finalizar compra",
}

// formOrderVocab confirms an owned ordering flow inside a <form>.
var formOrderVocab = []string{
	"order", "cart", "checkout", "pedido", "carrito", "ordine", "carrello", "carrinho",
}

// cartSelectors match cart/checkout widgets by class or id.
var cartSelectors = []string{
	"[class*='cart']", "[id*='cart']",
	"[class*='checkout']", "[id*='checkout']",
	"[class*='add-to-bag']", "[id*='add-to-bag']",
}

// Analyzer implements enrich.FeatureAnalyzer with pattern-family heuristics.
type Analyzer struct {
	clock  enrich.Clock
	logger *zap.Logger
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(clock enrich.Clock, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{clock: clock, logger: logger}
}

// Analyze computes the feature set for a page. A parse failure leaves every
// feature unknown (nil) rather than guessing false.
func (a *Analyzer) Analyze(html, pageURL string) enrich.FeatureSet {
	fs := enrich.FeatureSet{AnalyzedAt: a.clock.Now()}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		a.logger.Warn("feature analysis parse failed", zap.String("url", pageURL), zap.Error(err))
		return fs
	}
	lower := strings.ToLower(html)

	fs.HasSEO = boolPtr(hasSEO(doc))
	fs.HasWhatsApp = boolPtr(containsAny(lower, whatsappPatterns))
	fs.HasReservation = boolPtr(hasReservation(lower))
	fs.HasThirdPartyDelivery = boolPtr(containsAny(lower, deliveryPlatforms))
	fs.HasDirectOrdering = boolPtr(hasDirectOrdering(doc, lower))
	return fs
}

func hasSEO(doc *goquery.Document) bool {
	signals := 0
	if strings.TrimSpace(doc.Find("title").First().Text()) != "" {
		signals++
	}
	if desc, ok := doc.Find("meta[name='description']").First().Attr("content"); ok && strings.TrimSpace(desc) != "" {
		signals++
	}
	if strings.TrimSpace(doc.Find("h1").First().Text()) != "" {
		signals++
	}
	if doc.Find("script[type='application/ld+json']").Length() > 0 {
		signals++
	}
	return signals >= seoSignalsRequired
}

// hasReservation confirms booking intent while discounting "all rights
// reserved" boilerplate: once boilerplate is present, only the strong
// indicator list still counts.
func hasReservation(lower string) bool {
	matched := containsAny(lower, reservationPhrases) || containsAny(lower, reservationPlatforms)
	if !matched {
		return false
	}
	if containsAny(lower, rightsReservedPhrases) {
		return containsAny(lower, strongReservationIndicators)
	}
	return true
}

func hasDirectOrdering(doc *goquery.Document, lower string) bool {
	if containsAny(lower, orderingKeywords) {
		return true
	}
	found := false
	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		text := strings.ToLower(form.Text())
		if containsAny(text, formOrderVocab) {
			found = true
			return false
		}
		return true
	})
	if found {
		return true
	}
	for _, sel := range cartSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func boolPtr(b bool) *bool { return &b }
