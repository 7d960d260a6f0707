// Package canonical provides pure normalization helpers for URLs, domains,
// phone numbers, and business names. No I/O, no state.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

var (
	// ErrEmptyURL is returned for empty or whitespace-only input.
	ErrEmptyURL = errors.New("empty url")
	// ErrInvalidURL is returned when the input cannot be parsed into a host.
	ErrInvalidURL = errors.New("invalid url")
)

// trackingParams lists query parameters stripped during canonicalization.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"gclsrc":       true,
	"dclid":        true,
	"msclkid":      true,
}

// CanonicalizeURL normalizes a URL into its canonical company-key form:
// scheme forced to https, host lowercased and punycoded, default ports and
// fragments removed, dot segments resolved, trailing slash dropped, query
// keys sorted with tracking parameters stripped. The function is
// idempotent: CanonicalizeURL(CanonicalizeURL(u)) == CanonicalizeURL(u).
func CanonicalizeURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", ErrEmptyURL
	}

	// Scraped hrefs occasionally omit the scheme ("www.acme.com").
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	u.Scheme = "https"

	host := strings.ToLower(u.Hostname())
	ascii, idnaErr := idna.Lookup.ToASCII(host)
	if idnaErr == nil && ascii != "" {
		host = ascii
	}
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host = host + ":" + port
	}
	u.Host = host

	if u.Path != "" {
		cleaned := path.Clean(u.Path)
		if cleaned == "." || cleaned == "/" {
			cleaned = ""
		}
		u.Path = strings.TrimRight(cleaned, "/")
	}

	u.Fragment = ""
	u.RawQuery = canonicalQuery(u.Query())
	u.User = nil

	return u.String(), nil
}

// canonicalQuery strips tracking parameters and re-encodes with sorted keys.
func canonicalQuery(values url.Values) string {
	for param := range values {
		if trackingParams[param] {
			values.Del(param)
		}
	}
	if len(values) == 0 {
		return ""
	}
	return values.Encode()
}

// ExtractDomain returns the registrable domain (eTLD+1) of a URL or bare
// host, lowercased.
func ExtractDomain(rawURL string) (string, error) {
	canon, err := CanonicalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(canon)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(u.Hostname())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	return domain, nil
}

// Fingerprint returns the SHA-256 hex digest of the canonical URL form.
// Equivalent URLs share a fingerprint.
func Fingerprint(rawURL string) (string, error) {
	canon, err := CanonicalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:]), nil
}
