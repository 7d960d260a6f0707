package canonical

import (
	"net/url"
	"strings"
)

// aggregatorDomains lists registrable domains that can never be a
// business's own website: the source directory itself, social networks,
// map services, and review aggregators. Listing cards frequently link to
// these instead of a real site.
var aggregatorDomains = map[string]bool{
	"yellowpages.com": true,
	"yellowbook.com":  true,
	"superpages.com":  true,
	"citysearch.com":  true,
	"manta.com":       true,
	"bizapedia.com":   true,
	"facebook.com":    true,
	"instagram.com":   true,
	"twitter.com":     true,
	"x.com":           true,
	"linkedin.com":    true,
	"youtube.com":     true,
	"tiktok.com":      true,
	"pinterest.com":   true,
	"nextdoor.com":    true,
	"google.com":      true,
	"mapquest.com":    true,
	"waze.com":        true,
	"yelp.com":        true,
	"tripadvisor.com": true,
	"angi.com":        true,
	"angieslist.com":  true,
	"thumbtack.com":   true,
	"houzz.com":       true,
	"bbb.org":         true,
	"foursquare.com":  true,
	"groupon.com":     true,
}

// IsPlausibleWebsite reports whether a URL could be a business's own
// website: it must parse, use http or https, and not live on a directory,
// social, map, or review domain.
func IsPlausibleWebsite(rawURL string) bool {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return false
	}

	if strings.Contains(trimmed, "://") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return false
		}
		scheme := strings.ToLower(u.Scheme)
		if scheme != "http" && scheme != "https" {
			return false
		}
	}

	domain, err := ExtractDomain(trimmed)
	if err != nil {
		return false
	}
	return !aggregatorDomains[domain]
}
