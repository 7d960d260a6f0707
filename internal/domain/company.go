package domain

import "time"

// DefaultSource tags rows produced by the directory pipeline.
const DefaultSource = "yellowpages"

// Company is a persisted, deduplicated business. Keyed by the canonical
// website URL; no two rows ever share one.
type Company struct {
	ID int64 `db:"id" json:"id"`

	Name             string  `db:"name"              json:"name"`
	WebsiteCanonical string  `db:"website_canonical" json:"website_canonical"`
	Domain           *string `db:"domain"            json:"domain,omitempty"`
	PhoneE164        *string `db:"phone_e164"        json:"phone_e164,omitempty"`
	Address          *string `db:"address"           json:"address,omitempty"`
	City             *string `db:"city"              json:"city,omitempty"`
	State            *string `db:"state"             json:"state,omitempty"`

	Rating      *float64 `db:"rating"       json:"rating,omitempty"`
	ReviewCount *int     `db:"review_count" json:"review_count,omitempty"`

	Source          string    `db:"source"            json:"source"`
	SourceFirstSeen time.Time `db:"source_first_seen" json:"source_first_seen"`
	LastSeen        time.Time `db:"last_seen"         json:"last_seen"`

	ParseMetadata JSONBMap `db:"parse_metadata" json:"parse_metadata"`
}

// Parse metadata keys. The document stays semi-structured at the
// persistence boundary but the key set is fixed in code.
const (
	MetaProfileURL    = "profile_url"
	MetaCategoryTags  = "category_tags"
	MetaIsSponsored   = "is_sponsored"
	MetaFilterScore   = "filter_score"
	MetaFilterReason  = "filter_reason"
	MetaSourcePageURL = "source_page_url"
)

// BuildParseMetadata assembles the provenance document for one listing
// and its filter verdict.
func BuildParseMetadata(listing *Listing, outcome FilterOutcome) JSONBMap {
	meta := JSONBMap{
		MetaCategoryTags:  toAnySlice(listing.CategoryTags),
		MetaIsSponsored:   listing.IsSponsored,
		MetaFilterScore:   outcome.Score,
		MetaFilterReason:  outcome.Reason,
		MetaSourcePageURL: listing.SourcePageURL,
	}
	if listing.ProfileURL != nil {
		meta[MetaProfileURL] = *listing.ProfileURL
	}
	return meta
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
