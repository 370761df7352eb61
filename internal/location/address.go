package location

import (
	"regexp"
	"strings"
)

// addressWords are street-level tokens (English, Spanish, Italian,
// Portuguese) that mark a line as address-like.
var addressWords = []string{
	"street", "st", "avenue", "ave", "road", "rd", "boulevard", "blvd",
	"drive", "dr", "lane", "ln", "suite", "ste", "plaza", "square", "floor",
	"calle", "avenida", "av", "carrera", "paseo",
	"via", "viale", "piazza", "corso",
	"rua", "alameda", "travessa",
}

// defaultKnownCities anchors the false-positive filter: a candidate naming a
// recognized city is kept even without a street keyword.
var defaultKnownCities = []string{
	"new york", "los angeles", "chicago", "houston", "miami", "san francisco",
	"toronto", "london", "manchester", "dublin",
	"madrid", "barcelona", "valencia", "sevilla",
	"mexico city", "ciudad de mexico", "guadalajara", "monterrey",
	"bogota", "medellin", "lima", "santiago", "buenos aires", "montevideo",
	"sao paulo", "rio de janeiro", "belo horizonte", "brasilia", "lisboa", "porto",
	"roma", "milano", "napoli", "torino", "firenze",
	"paris", "berlin", "amsterdam",
}

var (
	timeRe      = regexp.MustCompile(`(?i)\b\d{1,2}([:.]\d{2})?\s?(am|pm|h|hs)?\b\s*[-–—]\s*\d{1,2}([:.]\d{2})?\s?(am|pm|h|hs)?\b`)
	clockRe     = regexp.MustCompile(`(?i)\b\d{1,2}[:.]\d{2}\s?(am|pm)?\b`)
	digitRe     = regexp.MustCompile(`\d`)
	commaNumRe  = regexp.MustCompile(`\d[^,\n]*,|,[^,\n]*\d`)
	addressRe   = regexp.MustCompile(`(?im)\b\d{1,5}\s[^\n<>{};]{5,120}`)
	wordSplitRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// dayNames covers the business-hours filter in four languages.
var dayNames = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"lunes", "martes", "miercoles", "jueves", "viernes", "sabado", "domingo",
	"lunedi", "martedi", "mercoledi", "giovedi", "venerdi", "sabato", "domenica",
	"segunda", "terca", "quarta", "quinta", "sexta", "sabado", "domingo",
}

const (
	minCandidateLen = 15
	maxCandidateLen = 150
)

// looksLikeAddress reports whether a text line plausibly holds a street
// address: bounded length, a numeric token, and either a street keyword or a
// comma-delimited structure.
func looksLikeAddress(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) < minCandidateLen || len(line) > maxCandidateLen {
		return false
	}
	if !digitRe.MatchString(line) {
		return false
	}
	return hasAddressWord(line) || strings.Contains(line, ",")
}

func hasAddressWord(line string) bool {
	for _, tok := range wordSplitRe.Split(strings.ToLower(line), -1) {
		for _, w := range addressWords {
			if tok == w {
				return true
			}
		}
	}
	return false
}

func hasKnownCity(line string, cities []string) bool {
	lower := strings.ToLower(line)
	for _, city := range cities {
		if strings.Contains(lower, city) {
			return true
		}
	}
	return false
}

// isFalsePositive rejects business-hours strings, code/CSS fragments, bare
// time ranges, and anything lacking address context entirely.
func isFalsePositive(line string, cities []string) bool {
	lower := strings.ToLower(line)

	// business hours: a day name next to a clock time
	for _, day := range dayNames {
		if strings.Contains(lower, day) && (clockRe.MatchString(lower) || timeRe.MatchString(lower)) {
			return true
		}
	}
	// code or CSS fragments
	for _, frag := range []string{"{", "}", "function(", "var(", "display:", "width:", "px;", "!important"} {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	// a bare time range without address context
	if timeRe.MatchString(lower) && !hasAddressWord(lower) && !hasKnownCity(lower, cities) {
		return true
	}
	// must retain at least one form of address context
	if !hasAddressWord(lower) && !commaNumRe.MatchString(lower) && !hasKnownCity(lower, cities) {
		return true
	}
	return false
}

// extractAddressLines pulls address-like lines out of free text via regex.
func extractAddressLines(text string) []string {
	var out []string
	for _, m := range addressRe.FindAllString(text, -1) {
		m = collapseWhitespace(m)
		if looksLikeAddress(m) {
			out = append(out, m)
		}
	}
	return out
}

// normalizeKey lowers the case and strips every non-alphanumeric rune; it is
// the deduplication key applied before and after formatting.
func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dedupeNormalized keeps the first occurrence per normalized key.
func dedupeNormalized(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := normalizeKey(n)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

// formatName strips markup noise and squeezes whitespace.
func formatName(s string) string {
	s = collapseWhitespace(s)
	s = strings.Trim(s, " \t\r\n,;:|•·-–—")
	return s
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
