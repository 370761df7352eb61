package fetch

import (
	"strings"
)

// Verdict is the outcome of running the bot-detection rule table over a 2xx
// response body.
type Verdict struct {
	Detected bool
	// Matched lists the IDs of the rules that fired.
	Matched []string
	// Suppressed records why a detection was discarded, if it was.
	Suppressed string
}

// Rule is one independently testable bot-detection heuristic. Rules require
// phrase co-occurrence rather than single keywords to keep the false-positive
// rate down.
type Rule struct {
	ID     string
	Weight int
	Match  func(s PageSample) bool
}

// PageSample is the pre-lowered view of a response body shared across rules.
type PageSample struct {
	Body  string
	lower string
}

// NewPageSample prepares a body for rule evaluation.
func NewPageSample(body string) PageSample {
	return PageSample{Body: body, lower: strings.ToLower(body)}
}

func (s PageSample) contains(phrase string) bool {
	return strings.Contains(s.lower, phrase)
}

func (s PageSample) containsAny(phrases ...string) bool {
	for _, p := range phrases {
		if s.contains(p) {
			return true
		}
	}
	return false
}

// Classifier evaluates the rule table over a page sample.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds the default rule table. minBodyBytes is the threshold
// below which a trimmed 2xx body is considered an interstitial.
func NewClassifier(minBodyBytes int) *Classifier {
	if minBodyBytes <= 0 {
		minBodyBytes = 500
	}
	return &Classifier{rules: []Rule{
		{
			ID:     "body_too_small",
			Weight: 1,
			Match: func(s PageSample) bool {
				return len(strings.TrimSpace(s.Body)) < minBodyBytes
			},
		},
		{
			ID:     "captcha_challenge",
			Weight: 2,
			Match: func(s PageSample) bool {
				if !s.contains("captcha") {
					return false
				}
				return s.containsAny("verify", "challenge", "are you human", "security", "solve")
			},
		},
		{
			ID:     "bot_protection",
			Weight: 2,
			Match: func(s PageSample) bool {
				return s.containsAny(
					"are you a robot",
					"robot check",
					"bot detection",
					"automated access",
					"automated requests",
					"unusual traffic",
					"suspicious activity",
				)
			},
		},
		{
			ID:     "security_check",
			Weight: 2,
			Match: func(s PageSample) bool {
				if s.contains("cloudflare") {
					return s.containsAny("checking your browser", "security check", "attention required", "ray id")
				}
				return s.contains("ddos") && s.contains("protection")
			},
		},
		{
			ID:     "access_denied",
			Weight: 2,
			Match: func(s PageSample) bool {
				if !s.contains("access denied") {
					return false
				}
				return s.containsAny("blocked", "permission", "administrator", "your request")
			},
		},
	}}
}

// Classify runs every rule independently and reports which fired.
func (c *Classifier) Classify(body string) Verdict {
	s := NewPageSample(body)
	var matched []string
	for _, r := range c.rules {
		if r.Match(s) {
			matched = append(matched, r.ID)
		}
	}
	return Verdict{Detected: len(matched) > 0, Matched: matched}
}

// Suppressor discards weak bot-detection verdicts on sites recognized as
// low-signal builder platforms or explicitly known-good domains. Builder
// boilerplate (tiny landing pages, generic security copy) routinely trips one
// or two rules without any real challenge being present.
type Suppressor struct {
	builderMarkers []string
	knownGood      []string
	weakSignalMax  int
}

// DefaultBuilderPlatforms are body markers for common site builders whose
// boilerplate produces weak matches.
var DefaultBuilderPlatforms = []string{
	"wix.com",
	"squarespace",
	"weebly",
	"godaddy",
	"cdn.shopify.com",
	"jimdo",
	"webnode",
}

// NewSuppressor builds the suppression layer. weakSignalMax is the largest
// matched-rule count that still counts as a weak verdict.
func NewSuppressor(builderMarkers, knownGood []string, weakSignalMax int) *Suppressor {
	if len(builderMarkers) == 0 {
		builderMarkers = DefaultBuilderPlatforms
	}
	lowered := make([]string, 0, len(builderMarkers))
	for _, m := range builderMarkers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			lowered = append(lowered, m)
		}
	}
	goods := make([]string, 0, len(knownGood))
	for _, g := range knownGood {
		g = strings.ToLower(strings.TrimSpace(g))
		if g != "" {
			goods = append(goods, g)
		}
	}
	return &Suppressor{
		builderMarkers: lowered,
		knownGood:      goods,
		weakSignalMax:  weakSignalMax,
	}
}

// Apply discards the verdict when the match set is weak and the site is a
// recognized builder platform or known-good domain. Strong verdicts pass
// through untouched.
func (s *Suppressor) Apply(v Verdict, host, body string) Verdict {
	if s == nil || !v.Detected {
		return v
	}
	if len(v.Matched) > s.weakSignalMax {
		return v
	}
	if s.isKnownGood(host) {
		return Verdict{Matched: v.Matched, Suppressed: "known_good_domain"}
	}
	if s.isBuilderPlatform(body) {
		return Verdict{Matched: v.Matched, Suppressed: "builder_platform"}
	}
	return v
}

func (s *Suppressor) isKnownGood(host string) bool {
	host = strings.ToLower(host)
	for _, g := range s.knownGood {
		if host == g || strings.HasSuffix(host, "."+g) {
			return true
		}
	}
	return false
}

func (s *Suppressor) isBuilderPlatform(body string) bool {
	lower := strings.ToLower(body)
	for _, m := range s.builderMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
