package directory

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/internal/parser"
)

const yellowPagesBase = "https://www.yellowpages.com"

// YellowPages walks yellowpages.com search results.
type YellowPages struct {
	parser *parser.Parser
}

// NewYellowPages creates the source with the given parser options.
func NewYellowPages(opts parser.Options) *YellowPages {
	return &YellowPages{parser: parser.New(opts)}
}

// Name implements Source.
func (y *YellowPages) Name() string { return domain.DefaultSource }

// PlanTarget implements Source. The primary URL is the category+city path
// form; the fallback is the search form, which tolerates slugs the path
// router rejects.
func (y *YellowPages) PlanTarget(state, city, category string, priority int) TargetPlan {
	citySlug := Slugify(city) + "-" + strings.ToLower(state)
	categorySlug := Slugify(category)

	primary := fmt.Sprintf("%s/%s/%s", yellowPagesBase, citySlug, categorySlug)
	fallback := fmt.Sprintf("%s/search?search_terms=%s&geo_location_terms=%s",
		yellowPagesBase,
		url.QueryEscape(category),
		url.QueryEscape(city+", "+strings.ToUpper(state)),
	)

	return TargetPlan{
		State:       strings.ToUpper(state),
		City:        city,
		CitySlug:    citySlug,
		Category:    category,
		PrimaryURL:  primary,
		FallbackURL: fallback,
		Priority:    priority,
		PageTarget:  domain.PageTargetForPriority(priority),
	}
}

// PageURL implements Source. Page 1 is the bare URL; later pages add the
// page query parameter.
func (y *YellowPages) PageURL(target *domain.Target, page int) string {
	base := target.PrimaryURL
	u, err := url.Parse(base)
	if err != nil {
		base = target.FallbackURL
		if u, err = url.Parse(base); err != nil {
			return base
		}
	}

	if page <= 1 {
		return u.String()
	}

	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// ParsePage implements Source.
func (y *YellowPages) ParsePage(html []byte, sourcePageURL string) ([]*domain.Listing, error) {
	return y.parser.Parse(html, sourcePageURL)
}

// Slugify lowercases, replaces runs of non-alphanumerics with single
// hyphens, and trims hyphens from the ends. "St. Louis" -> "st-louis".
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
