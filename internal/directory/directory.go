// Package directory abstracts the listing sources the crawl loop can walk.
// Each source implements the same capability set; the worker core never
// knows which directory it is talking to.
package directory

import (
	"github.com/jonesrussell/goprospect/internal/domain"
)

// TargetPlan is the seed-time description of one crawlable unit before it
// becomes a stored target.
type TargetPlan struct {
	State       string
	City        string
	CitySlug    string
	Category    string
	PrimaryURL  string
	FallbackURL string
	Priority    int
	PageTarget  int
}

// Source is the capability set every directory module provides.
type Source interface {
	// Name tags rows produced by this source.
	Name() string
	// PlanTarget builds the request URLs for one (state, city, category).
	PlanTarget(state, city, category string, priority int) TargetPlan
	// PageURL appends the page parameter to a target's primary URL, or
	// to the fallback URL when the primary cannot be parsed.
	PageURL(target *domain.Target, page int) string
	// ParsePage extracts the listings on one search-results page.
	ParsePage(html []byte, sourcePageURL string) ([]*domain.Listing, error)
}
