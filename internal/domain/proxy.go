package domain

import "time"

// DirectEndpoint is the sentinel identity returned when no proxy is
// available; the fetcher proceeds without one.
const DirectEndpoint = "direct"

// ProxyEntry is one outbound identity with its health bookkeeping.
type ProxyEntry struct {
	Endpoint            string
	Kind                string
	UseCount            int64
	ConsecutiveFailures int
	LastFailureReason   string
	LastFailureAt       time.Time
	BlacklistedUntil    time.Time
}

// Eligible reports whether the proxy may be handed out at the given time.
func (p *ProxyEntry) Eligible(now time.Time) bool {
	return !now.Before(p.BlacklistedUntil)
}

// Direct reports whether this entry is the no-proxy sentinel.
func (p *ProxyEntry) Direct() bool {
	return p.Endpoint == DirectEndpoint
}
