package helpers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jonesrussell/goprospect/internal/directory"
	"github.com/jonesrussell/goprospect/internal/domain"
)

// TargetOption is a function that modifies a test target.
type TargetOption func(*domain.Target)

// TestTarget creates a planned target for one (state, city, category)
// tuple, with URLs shaped the way the directory source plans them.
func TestTarget(state, city, category string, opts ...TargetOption) *domain.Target {
	citySlug := directory.Slugify(city) + "-" + strings.ToLower(state)
	categorySlug := directory.Slugify(category)

	target := &domain.Target{
		State:      strings.ToUpper(state),
		City:       city,
		CitySlug:   citySlug,
		Category:   category,
		PrimaryURL: fmt.Sprintf("https://www.yellowpages.com/%s/%s", citySlug, categorySlug),
		FallbackURL: fmt.Sprintf("https://www.yellowpages.com/search?search_terms=%s&geo_location_terms=%s",
			url.QueryEscape(category),
			url.QueryEscape(city+", "+strings.ToUpper(state)),
		),
		Priority:   domain.PriorityHigh,
		PageTarget: domain.PageTargetForPriority(domain.PriorityHigh),
		Status:     domain.TargetStatusPlanned,
	}

	for _, opt := range opts {
		opt(target)
	}

	return target
}

// WithPriority sets the priority tier and the page budget that goes with it.
func WithPriority(priority int) TargetOption {
	return func(t *domain.Target) {
		t.Priority = priority
		t.PageTarget = domain.PageTargetForPriority(priority)
	}
}

// WithPageTarget pins the page budget directly.
func WithPageTarget(pages int) TargetOption {
	return func(t *domain.Target) {
		t.PageTarget = pages
	}
}

// ListingOption is a function that modifies a test listing.
type ListingOption func(*domain.Listing)

// TestListing creates a plausible parsed listing with a website.
func TestListing(name, website string, opts ...ListingOption) *domain.Listing {
	phone := "(512) 555-0142"
	address := "100 Congress Ave, Austin, TX 78701"

	listing := &domain.Listing{
		Name:          name,
		Phone:         &phone,
		Address:       &address,
		Website:       &website,
		CategoryTags:  []string{"Plumbers"},
		SourcePageURL: "https://www.yellowpages.com/austin-tx/plumbers",
	}

	for _, opt := range opts {
		opt(listing)
	}

	return listing
}

// WithRating sets the rating and review count for a test listing.
func WithRating(rating float64, reviews int) ListingOption {
	return func(l *domain.Listing) {
		l.Rating = &rating
		l.Reviews = &reviews
	}
}

// WithCategoryTags sets the category tags for a test listing.
func WithCategoryTags(tags ...string) ListingOption {
	return func(l *domain.Listing) {
		l.CategoryTags = tags
	}
}

// WithoutWebsite drops the website so the listing cannot canonicalize.
func WithoutWebsite() ListingOption {
	return func(l *domain.Listing) {
		l.Website = nil
	}
}

// AcceptedOutcome is the filter verdict for a listing that passed.
func AcceptedOutcome(score int) domain.FilterOutcome {
	return domain.FilterOutcome{Accepted: true, Reason: domain.ReasonAccepted, Score: score}
}

// RejectedOutcome is the filter verdict for a refused listing.
func RejectedOutcome(reason string, score int) domain.FilterOutcome {
	return domain.FilterOutcome{Accepted: false, Reason: reason, Score: score}
}
