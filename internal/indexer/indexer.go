package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/goprospect/internal/canonical"
	esconfig "github.com/jonesrussell/goprospect/internal/config/elasticsearch"
	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/internal/logger"
)

// defaultIndexTimeout bounds one index call so a slow cluster cannot
// stall the crawl loop.
const defaultIndexTimeout = 10 * time.Second

// CompanyDocument is the searchable projection of one accepted listing.
// Documents are keyed by the canonical website fingerprint, so re-sightings
// overwrite rather than duplicate.
type CompanyDocument struct {
	Website       string   `json:"website"`
	Domain        string   `json:"domain,omitempty"`
	Name          string   `json:"name"`
	Phone         string   `json:"phone,omitempty"`
	Address       string   `json:"address,omitempty"`
	City          string   `json:"city"`
	State         string   `json:"state"`
	Category      string   `json:"category"`
	CategoryTags  []string `json:"category_tags"`
	Rating        *float64 `json:"rating,omitempty"`
	Reviews       *int     `json:"reviews,omitempty"`
	IsSponsored   bool     `json:"is_sponsored"`
	FilterScore   int      `json:"filter_score"`
	FilterReason  string   `json:"filter_reason"`
	SourcePageURL string   `json:"source_page_url"`
	ProfileURL    string   `json:"profile_url,omitempty"`
	Source        string   `json:"source"`

	IndexedAt time.Time `json:"indexed_at"`
}

// Indexer writes company documents to one index.
type Indexer struct {
	client *es.Client
	index  string
	source string
	log    logger.Interface
	now    func() time.Time
}

// New wires an indexer for the configured index name.
func New(client *es.Client, cfg *esconfig.Config, source string, log logger.Interface) *Indexer {
	return &Indexer{
		client: client,
		index:  cfg.IndexName,
		source: source,
		log:    log.WithComponent("indexer"),
		now:    time.Now,
	}
}

// IndexAccepted mirrors one accepted listing. The document identity is the
// canonical website fingerprint; a listing whose website cannot be
// canonicalized is skipped silently, matching the persistence layer.
func (i *Indexer) IndexAccepted(
	ctx context.Context,
	target *domain.Target,
	listing *domain.Listing,
	outcome domain.FilterOutcome,
) error {
	website, err := canonical.CanonicalizeURL(listing.WebsiteOrEmpty())
	if err != nil || website == "" {
		return nil
	}
	docID, err := canonical.Fingerprint(website)
	if err != nil {
		return nil
	}

	doc := i.buildDocument(website, target, listing, outcome)
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal company document: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultIndexTimeout)
	defer cancel()

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(docID),
	)
	if err != nil {
		return fmt.Errorf("failed to index company: %w", err)
	}
	defer res.Body.Close() //nolint:errcheck // response body close errors are not actionable

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}

	i.log.Debug("company mirrored",
		"website", website, "index", i.index, "doc_id", docID)
	return nil
}

// buildDocument projects the listing and its provenance into the document.
func (i *Indexer) buildDocument(
	website string,
	target *domain.Target,
	listing *domain.Listing,
	outcome domain.FilterOutcome,
) *CompanyDocument {
	name := listing.Name
	if cleaned, err := canonical.CleanName(name); err == nil {
		name = cleaned
	}

	doc := &CompanyDocument{
		Website:       website,
		Name:          name,
		City:          target.City,
		State:         target.State,
		Category:      target.Category,
		CategoryTags:  listing.CategoryTags,
		Rating:        listing.Rating,
		Reviews:       listing.Reviews,
		IsSponsored:   listing.IsSponsored,
		FilterScore:   outcome.Score,
		FilterReason:  outcome.Reason,
		SourcePageURL: listing.SourcePageURL,
		Source:        i.source,
		IndexedAt:     i.now().UTC(),
	}

	if dom, err := canonical.ExtractDomain(website); err == nil {
		doc.Domain = dom
	}
	if listing.Phone != nil {
		if phone, err := canonical.NormalizePhone(*listing.Phone); err == nil {
			doc.Phone = phone
		}
	}
	if listing.Address != nil {
		doc.Address = *listing.Address
	}
	if listing.ProfileURL != nil {
		doc.ProfileURL = *listing.ProfileURL
	}
	return doc
}
