package domain

// Listing is one business card extracted from a search results page.
// Missing fields are nil, never placeholder strings.
type Listing struct {
	Name          string   `json:"name"`
	Phone         *string  `json:"phone,omitempty"`
	Address       *string  `json:"address,omitempty"`
	Website       *string  `json:"website,omitempty"`
	ProfileURL    *string  `json:"profile_url,omitempty"`
	CategoryTags  []string `json:"category_tags"`
	Rating        *float64 `json:"rating,omitempty"`
	Reviews       *int     `json:"reviews,omitempty"`
	IsSponsored   bool     `json:"is_sponsored"`
	BusinessHours *string  `json:"business_hours,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Services      []string `json:"services,omitempty"`
	SourcePageURL string   `json:"source_page_url"`
}

// WebsiteOrEmpty returns the raw website value or "".
func (l *Listing) WebsiteOrEmpty() string {
	if l.Website == nil {
		return ""
	}
	return *l.Website
}

// DescriptionOrEmpty returns the description value or "".
func (l *Listing) DescriptionOrEmpty() string {
	if l.Description == nil {
		return ""
	}
	return *l.Description
}

// FilterOutcome is the filter's verdict for one listing.
// Score is populated for accepted and rejected listings alike.
type FilterOutcome struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
	Score    int    `json:"score"`
}

// Filter reason codes.
const (
	ReasonAccepted         = "accepted"
	ReasonNoCategory       = "no_category"
	ReasonBlockedCategory  = "blocked_category"
	ReasonMismatchCategory = "mismatch_category"
	ReasonAntiKeyword      = "anti_keyword"
	ReasonEquipmentOnly    = "equipment_only"
	ReasonNoWebsite        = "no_website"
	ReasonEcommerceURL     = "ecommerce_url"
	ReasonSponsored        = "sponsored"
	ReasonLowScore         = "low_score"
)
