package domain

import "time"

// FetchOutcome classifies the result of fetching one page.
type FetchOutcome string

const (
	// FetchOK means the page was retrieved and looks benign.
	FetchOK FetchOutcome = "ok"
	// FetchCaptcha means a challenge page was detected.
	FetchCaptcha FetchOutcome = "captcha"
	// FetchBlocked means the request was refused (403/429/503 or block HTML).
	FetchBlocked FetchOutcome = "blocked"
	// FetchTransient means a retryable network-level failure (DNS, timeout, 5xx).
	FetchTransient FetchOutcome = "transient"
	// FetchFatal means the fetcher itself is broken (browser died, context cancelled).
	FetchFatal FetchOutcome = "fatal"
)

// FetchResult carries everything observed while retrieving one page.
// Captcha, blocks, and transient failures are values here, not errors;
// callers branch on Outcome.
type FetchResult struct {
	Outcome FetchOutcome
	Status  int
	Body    []byte
	Elapsed time.Duration
	Proxy   string
	Reason  string
}

// OK reports whether the page is usable for parsing.
func (r *FetchResult) OK() bool {
	return r.Outcome == FetchOK
}

// Denied reports whether the directory pushed back (captcha or block),
// which requeues the target with a cool-down.
func (r *FetchResult) Denied() bool {
	return r.Outcome == FetchCaptcha || r.Outcome == FetchBlocked
}
