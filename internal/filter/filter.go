// Package filter decides, deterministically, whether an extracted listing
// is admitted into the company store. Rules fire in a fixed order; the
// first firing rule decides, and every verdict carries a reason code and
// a numeric confidence score.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jonesrussell/goprospect/internal/canonical"
	filterconfig "github.com/jonesrussell/goprospect/internal/config/filter"
	"github.com/jonesrussell/goprospect/internal/domain"
)

// Scoring constants.
const (
	scoreBase = 50

	scorePerAllowedTag    = 10
	scoreAllowedTagCap    = 50
	scorePerHint          = 5
	scoreHintCap          = 25
	scoreEquipmentPenalty = 20
	scoreWebsiteBonus     = 5
	scoreRatingBonus      = 3
	scorePerAntiKeyword   = 10
	scoreAntiKeywordCap   = 30

	scoreMin = 0
	scoreMax = 100
)

// Filter evaluates listings against the loaded lists. Immutable after
// construction; safe for concurrent use.
type Filter struct {
	lists          *Lists
	minScore       int
	admitSponsored bool
	equipmentLabel string
	wordPatterns   map[string]*regexp.Regexp
}

// New builds a filter from configuration and pre-loaded lists.
func New(cfg *filterconfig.Config, lists *Lists) *Filter {
	patterns := make(map[string]*regexp.Regexp, len(lists.AntiKeywords))
	for _, kw := range lists.AntiKeywords {
		patterns[kw] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return &Filter{
		lists:          lists,
		minScore:       cfg.MinScore,
		admitSponsored: cfg.IncludeSponsored,
		equipmentLabel: strings.ToLower(cfg.EquipmentOnlyLabel),
		wordPatterns:   patterns,
	}
}

// Decide applies the rule chain to one listing. The score is computed and
// returned whether the listing is accepted or not.
func (f *Filter) Decide(listing *domain.Listing) domain.FilterOutcome {
	// 1. No category tags at all.
	if len(listing.CategoryTags) == 0 {
		return reject(domain.ReasonNoCategory, 0)
	}

	// 2. Any tag on the blocklist disqualifies outright.
	for _, tag := range listing.CategoryTags {
		if f.lists.Blocklist[strings.ToLower(tag)] {
			return reject(fmt.Sprintf("%s:%s", domain.ReasonBlockedCategory, tag), 0)
		}
	}

	// 3. The allowed intersection must be non-empty.
	allowed := f.allowedTags(listing.CategoryTags)
	if len(allowed) == 0 {
		return reject(domain.ReasonMismatchCategory, 0)
	}

	// 4. Anti-keywords in the cleaned name, matched as whole words.
	name := listing.Name
	if cleaned, err := canonical.CleanName(listing.Name); err == nil {
		name = cleaned
	}
	for _, kw := range f.lists.AntiKeywords {
		if f.wordPatterns[kw].MatchString(name) {
			return reject(fmt.Sprintf("%s:%s", domain.ReasonAntiKeyword, kw), 0)
		}
	}

	// 5. Equipment-style tag alone needs service language somewhere.
	equipmentOnly := len(allowed) == 1 && allowed[0] == f.equipmentLabel
	if equipmentOnly && !f.hasPositiveHint(name) && !f.hasPositiveHint(listing.DescriptionOrEmpty()) {
		return reject(domain.ReasonEquipmentOnly, 0)
	}

	// 6-7. A usable website is required and must be off the deny list.
	website := listing.WebsiteOrEmpty()
	if strings.TrimSpace(website) == "" {
		return reject(domain.ReasonNoWebsite, 0)
	}
	websiteDenied := f.deniedDomain(website)
	if websiteDenied {
		return reject(domain.ReasonEcommerceURL, 0)
	}

	// 8. Sponsored cards only when admitted by configuration.
	if listing.IsSponsored && !f.admitSponsored {
		return reject(domain.ReasonSponsored, 0)
	}

	// 9. Score.
	score := f.score(listing, allowed, equipmentOnly, websiteDenied)

	// 10. Threshold.
	if score < f.minScore {
		return reject(fmt.Sprintf("%s:%d", domain.ReasonLowScore, score), score)
	}

	// 11. Admitted.
	return domain.FilterOutcome{Accepted: true, Reason: domain.ReasonAccepted, Score: score}
}

func reject(reason string, score int) domain.FilterOutcome {
	return domain.FilterOutcome{Accepted: false, Reason: reason, Score: score}
}

// allowedTags returns the lowercase intersection of the listing's tags and
// the allowlist, preserving the card order.
func (f *Filter) allowedTags(tags []string) []string {
	var allowed []string
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		if f.lists.Allowlist[lower] {
			allowed = append(allowed, lower)
		}
	}
	return allowed
}

// hasPositiveHint reports whether any hint substring occurs in the text.
func (f *Filter) hasPositiveHint(text string) bool {
	return f.countHints(text) > 0
}

// countHints counts positive-hint occurrences in the text, each hint
// counted once per occurrence.
func (f *Filter) countHints(text string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	count := 0
	for _, hint := range f.lists.PositiveHints {
		count += strings.Count(lower, hint)
	}
	return count
}

// deniedDomain reports whether the website's registrable domain is on the
// deny list. Unparseable websites are not treated as denied; rule 6
// already rejected empty ones.
func (f *Filter) deniedDomain(website string) bool {
	domainName, err := canonical.ExtractDomain(website)
	if err != nil {
		return false
	}
	return f.lists.DenyDomains[domainName]
}

// score implements the additive confidence rule set, clamped to [0, 100].
func (f *Filter) score(listing *domain.Listing, allowed []string, equipmentOnly, websiteDenied bool) int {
	score := scoreBase

	tagBonus := len(allowed) * scorePerAllowedTag
	if tagBonus > scoreAllowedTagCap {
		tagBonus = scoreAllowedTagCap
	}
	score += tagBonus

	hintBonus := f.countHints(listing.DescriptionOrEmpty()) * scorePerHint
	if hintBonus > scoreHintCap {
		hintBonus = scoreHintCap
	}
	score += hintBonus

	if equipmentOnly {
		score -= scoreEquipmentPenalty
	}

	if listing.WebsiteOrEmpty() != "" && !websiteDenied {
		score += scoreWebsiteBonus
	}

	if listing.Rating != nil && listing.Reviews != nil {
		score += scoreRatingBonus
	}

	antiPenalty := f.countAntiKeywords(listing.DescriptionOrEmpty()) * scorePerAntiKeyword
	if antiPenalty > scoreAntiKeywordCap {
		antiPenalty = scoreAntiKeywordCap
	}
	score -= antiPenalty

	if score < scoreMin {
		return scoreMin
	}
	if score > scoreMax {
		return scoreMax
	}
	return score
}

// countAntiKeywords counts whole-word anti-keyword occurrences in text.
func (f *Filter) countAntiKeywords(text string) int {
	if text == "" {
		return 0
	}
	count := 0
	for _, kw := range f.lists.AntiKeywords {
		count += len(f.wordPatterns[kw].FindAllStringIndex(text, -1))
	}
	return count
}
