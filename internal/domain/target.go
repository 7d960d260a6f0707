package domain

import "time"

// Target status constants.
const (
	TargetStatusPlanned    = "PLANNED"
	TargetStatusInProgress = "IN_PROGRESS"
	TargetStatusDone       = "DONE"
	TargetStatusFailed     = "FAILED"
	TargetStatusStuck      = "STUCK"
	TargetStatusParked     = "PARKED"
)

// Target notes written by the crawl loop, recovery, and operators.
const (
	NoteEarlyExitNoResults = "early_exit_no_results_page1"
	NoteCoolingDown        = "cooling_down"
	NoteOrphanRecovered    = "orphan_recovered"
	NoteResetByOperator    = "reset_by_operator"
	NoteShutdownRequeued   = "requeued_on_shutdown"
	NoteParkedByOperator   = "parked_by_operator"
)

// Priority tiers. Lower claims first.
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

// Target is one unit of crawl work: a (state, city, category) tuple.
// Unique on (state, city_slug, category).
type Target struct {
	ID int64 `db:"id" json:"id"`

	// Search axis. Immutable after seeding.
	State    string `db:"state"     json:"state"`
	City     string `db:"city"      json:"city"`
	CitySlug string `db:"city_slug" json:"city_slug"`
	Category string `db:"category"  json:"category"`

	// Request URLs. Immutable after seeding.
	PrimaryURL  string `db:"primary_url"  json:"primary_url"`
	FallbackURL string `db:"fallback_url" json:"fallback_url"`

	// Scheduling
	Priority   int    `db:"priority"    json:"priority"`
	PageTarget int    `db:"page_target" json:"page_target"`
	Status     string `db:"status"      json:"status"`

	// Claim state
	ClaimedBy   *string    `db:"claimed_by"   json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time `db:"claimed_at"   json:"claimed_at,omitempty"`
	HeartbeatAt *time.Time `db:"heartbeat_at" json:"heartbeat_at,omitempty"`

	// Progress
	PageCurrent int     `db:"page_current" json:"page_current"`
	Attempts    int     `db:"attempts"     json:"attempts"`
	LastError   *string `db:"last_error"   json:"last_error,omitempty"`
	Note        *string `db:"note"         json:"note,omitempty"`

	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"  json:"updated_at"`
}

// NextPage returns the first page a resuming worker should fetch.
func (t *Target) NextPage() int {
	return t.PageCurrent + 1
}

// Remaining reports whether any pages are left to crawl.
func (t *Target) Remaining() bool {
	return t.PageCurrent < t.PageTarget
}

// PageTargetForPriority maps a priority tier to its page budget.
// Tier 1 cities get three pages, tier 2 two, everything else one.
func PageTargetForPriority(priority int) int {
	switch priority {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}
