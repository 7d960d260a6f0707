// Package health tracks per-worker request outcomes, classifies hostile
// responses, and computes the adaptive request delay.
package health

import (
	"net/http"
	"strings"
)

// captchaMarkers are lowercase substrings whose presence in a response
// body indicates a challenge page rather than search results.
var captchaMarkers = []string{
	"g-recaptcha",
	"recaptcha/api.js",
	"data-sitekey",
	"h-captcha",
	"hcaptcha.com",
	"cf-challenge",
	"cf-turnstile",
	"challenge-platform",
	"just a moment",
	"checking your browser",
	"verify you are human",
	"are you a robot",
	"unusual traffic",
	"automated queries",
}

// blockMarkers are lowercase substrings whose presence indicates an
// outright refusal rather than a challenge.
var blockMarkers = []string{
	"access denied",
	"access to this page has been denied",
	"you are blocked",
	"you have been blocked",
	"rate limit exceeded",
	"too many requests",
	"request blocked",
	"forbidden",
}

// blockedStatuses are HTTP statuses treated as blocks regardless of body.
var blockedStatuses = map[int]bool{
	http.StatusForbidden:          true,
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// IsCaptcha reports whether the HTML contains a CAPTCHA or browser
// challenge: reCAPTCHA, hCaptcha, a Cloudflare challenge, or generic
// "verify you are human" phrasing.
func IsCaptcha(html string) bool {
	if html == "" {
		return false
	}
	lower := strings.ToLower(html)
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsBlocked reports whether the status code or HTML indicates the request
// was refused.
func IsBlocked(status int, html string) bool {
	if blockedStatuses[status] {
		return true
	}
	if html == "" {
		return false
	}
	lower := strings.ToLower(html)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
