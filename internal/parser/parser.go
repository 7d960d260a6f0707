// Package parser extracts business listings from directory search-results
// HTML. The parser is total: malformed cards produce null-filled listings,
// never errors, and the page-level entry point only fails when the HTML
// itself cannot be tokenized.
package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/goprospect/internal/canonical"
	"github.com/jonesrussell/goprospect/internal/domain"
)

// cardSelectors locate one listing card each, tried in priority order.
// The directory markup drifts; when it does, this list is what gets
// updated.
var cardSelectors = []string{
	"div.search-results div.result",
	"div.result[id^='lid-']",
	"div.result",
	"div.v-card",
	"div.listing",
}

// sponsoredMarkers identify paid placements on the card element itself or
// an enclosing container.
var sponsoredMarkers = []string{
	".ad-pack",
	".paid-listing",
	".sponsored",
	"[data-ad]",
}

// Parser turns one search-results page into an ordered listing slice.
type Parser struct {
	includeSponsored bool
}

// Options configures parsing behavior.
type Options struct {
	// IncludeSponsored keeps sponsored cards in the output. They are
	// tagged either way; when false they are dropped here so the filter
	// never sees them.
	IncludeSponsored bool
}

// New creates a parser.
func New(opts Options) *Parser {
	return &Parser{includeSponsored: opts.IncludeSponsored}
}

// Parse extracts the listings on one page, in card order. Duplicate cards
// (same canonical website) keep the first occurrence. Every listing
// carries sourcePageURL.
func (p *Parser) Parse(html []byte, sourcePageURL string) ([]*domain.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	cards := findCards(doc)

	listings := make([]*domain.Listing, 0, cards.Length())
	seen := make(map[string]bool, cards.Length())

	cards.Each(func(_ int, card *goquery.Selection) {
		listing := extractCard(card, sourcePageURL)
		if listing == nil {
			return
		}
		if listing.IsSponsored && !p.includeSponsored {
			return
		}

		// In-page dedup on canonical website, first occurrence wins.
		if listing.Website != nil {
			if canon, canonErr := canonical.CanonicalizeURL(*listing.Website); canonErr == nil {
				if seen[canon] {
					return
				}
				seen[canon] = true
			}
		}

		listings = append(listings, listing)
	})

	return listings, nil
}

// findCards returns the first selector strategy that matches anything.
func findCards(doc *goquery.Document) *goquery.Selection {
	for _, selector := range cardSelectors {
		if cards := doc.Find(selector); cards.Length() > 0 {
			return cards
		}
	}
	return doc.Find(cardSelectors[len(cardSelectors)-1])
}

// extractCard pulls every field it can from one card. A card without even
// a name is dropped; everything else degrades to nil fields.
func extractCard(card *goquery.Selection, sourcePageURL string) *domain.Listing {
	name := extractName(card)
	if name == "" {
		return nil
	}

	return &domain.Listing{
		Name:          name,
		Phone:         extractPhone(card),
		Address:       extractAddress(card),
		Website:       extractWebsite(card),
		ProfileURL:    extractProfileURL(card),
		CategoryTags:  extractCategories(card),
		Rating:        extractRating(card),
		Reviews:       extractReviewCount(card),
		IsSponsored:   isSponsoredCard(card),
		BusinessHours: extractHours(card),
		Description:   extractDescription(card),
		Services:      extractServices(card),
		SourcePageURL: sourcePageURL,
	}
}

// firstText returns the trimmed text of the first selector that yields a
// non-empty match.
func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if text := strings.TrimSpace(sel.Find(s).First().Text()); text != "" {
			return collapseSpace(text)
		}
	}
	return ""
}

// firstAttr returns the trimmed attribute of the first selector that
// yields a non-empty match.
func firstAttr(sel *goquery.Selection, attr string, selectors ...string) string {
	for _, s := range selectors {
		if val, ok := sel.Find(s).First().Attr(attr); ok {
			if val = strings.TrimSpace(val); val != "" {
				return val
			}
		}
	}
	return ""
}

func extractName(card *goquery.Selection) string {
	return firstText(card,
		"a.business-name span",
		"a.business-name",
		"h2.n a",
		"h2 a",
		".business-name",
	)
}

func extractPhone(card *goquery.Selection) *string {
	phone := firstText(card,
		"div.phones.phone.primary",
		"div.phones",
		"li.phone",
		".phone",
	)
	return optional(phone)
}

func extractAddress(card *goquery.Selection) *string {
	street := firstText(card, ".street-address", ".adr .street-address")
	locality := firstText(card, ".locality", ".adr .locality")

	switch {
	case street != "" && locality != "":
		full := street + ", " + locality
		return &full
	case street != "":
		return &street
	case locality != "":
		return &locality
	}

	// Some layouts carry one combined address node.
	return optional(firstText(card, ".adr", "p.adr"))
}

func extractWebsite(card *goquery.Selection) *string {
	href := firstAttr(card, "href",
		"a.track-visit-website",
		"a[class*='website']",
		"a.website-link",
	)
	if href == "" || strings.HasPrefix(href, "javascript:") {
		return nil
	}
	return &href
}

func extractProfileURL(card *goquery.Selection) *string {
	href := firstAttr(card, "href",
		"a.business-name",
		"h2.n a",
		"h2 a",
	)
	if href == "" {
		return nil
	}
	if strings.HasPrefix(href, "/") {
		href = "https://www.yellowpages.com" + href
	}
	return &href
}

// extractCategories returns the ordered tag list actually present on the
// card, never inferred. Duplicate tags within one card are dropped.
func extractCategories(card *goquery.Selection) []string {
	var tags []string
	seen := make(map[string]bool)

	for _, selector := range []string{"div.categories a", ".categories a", ".category a"} {
		links := card.Find(selector)
		if links.Length() == 0 {
			continue
		}
		links.Each(func(_ int, link *goquery.Selection) {
			tag := collapseSpace(strings.TrimSpace(link.Text()))
			if tag == "" || seen[tag] {
				return
			}
			seen[tag] = true
			tags = append(tags, tag)
		})
		break
	}
	return tags
}

// ratingWords maps the directory's class-name rating vocabulary to values.
var ratingWords = map[string]float64{
	"one":   1,
	"two":   2,
	"three": 3,
	"four":  4,
	"five":  5,
}

func extractRating(card *goquery.Selection) *float64 {
	// Strategy 1: numeric rating in a data attribute or text node.
	if text := firstText(card, ".rating-value", "[data-rating]"); text != "" {
		if v, err := strconv.ParseFloat(text, 64); err == nil && v > 0 && v <= 5 {
			return &v
		}
	}
	if attr := firstAttr(card, "data-rating", "[data-rating]"); attr != "" {
		if v, err := strconv.ParseFloat(attr, 64); err == nil && v > 0 && v <= 5 {
			return &v
		}
	}

	// Strategy 2: class-word encoding ("three half" = 3.5 stars).
	ratingEl := card.Find("div.result-rating, .rating .stars, div.ratings div[class*='rating']").First()
	if class, ok := ratingEl.Attr("class"); ok {
		var value float64
		for _, word := range strings.Fields(strings.ToLower(class)) {
			if v, known := ratingWords[word]; known {
				value = v
			}
			if word == "half" {
				value += 0.5
			}
		}
		if value > 0 && value <= 5 {
			return &value
		}
	}
	return nil
}

func extractReviewCount(card *goquery.Selection) *int {
	text := firstText(card, ".count", ".rating-count", "span.reviews")
	if text == "" {
		return nil
	}
	// Review counts arrive as "(42)" or "42 reviews".
	digits := strings.Builder{}
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func isSponsoredCard(card *goquery.Selection) bool {
	if class, ok := card.Attr("class"); ok {
		lower := strings.ToLower(class)
		if strings.Contains(lower, "paid") || strings.Contains(lower, "sponsored") {
			return true
		}
	}
	for _, marker := range sponsoredMarkers {
		if card.Find(marker).Length() > 0 {
			return true
		}
	}
	// Paid blocks also enclose organic-looking cards.
	return card.Closest(".paid-listings, .ad-pack").Length() > 0
}

func extractHours(card *goquery.Selection) *string {
	return optional(firstText(card, ".open-status", ".hours", "div.open-hours"))
}

func extractDescription(card *goquery.Selection) *string {
	return optional(firstText(card, ".snippet", "p.body", ".description", ".general-info"))
}

func extractServices(card *goquery.Selection) []string {
	var services []string
	card.Find(".services a, .amenities span").Each(func(_ int, s *goquery.Selection) {
		if text := collapseSpace(strings.TrimSpace(s.Text())); text != "" {
			services = append(services, text)
		}
	})
	return services
}

// optional converts "" to nil; missing fields are nil, never placeholders.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
