package fetch

import "errors"

// Sentinel errors the controller switches on when deciding between retry,
// escalation, and terminal failure.
var (
	// ErrBotDetected marks a 2xx response classified as an anti-automation
	// challenge page rather than real content.
	ErrBotDetected = errors.New("bot detection triggered")
	// ErrRateLimited marks a 403/429 response.
	ErrRateLimited = errors.New("rate limited or blocked")
	// ErrRobotsDisallowed marks a URL the robots gate denied.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
)
