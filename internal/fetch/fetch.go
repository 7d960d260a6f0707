// Package fetch retrieves directory pages with humanized pacing,
// fingerprint randomization, and proxy rotation. It has two
// interchangeable modes behind one contract: a headless browser
// (preferred, harder to detect) and plain HTTP (lighter fallback).
package fetch

import (
	"context"
	"fmt"
	"time"

	fetchconfig "github.com/jonesrussell/goprospect/internal/config/fetch"
	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/internal/health"
	"github.com/jonesrussell/goprospect/internal/logger"
)

// DelaySource yields the current adaptive inter-request delay.
type DelaySource interface {
	Delay() time.Duration
}

// ProxySource supplies outbound identities and takes health reports.
type ProxySource interface {
	Acquire() *domain.ProxyEntry
	ReportSuccess(entry *domain.ProxyEntry)
	ReportFailure(entry *domain.ProxyEntry, kind string)
	Rotate()
}

// Fetcher retrieves one search-results page per call. Captchas, blocks,
// and transient failures come back inside the FetchResult; an error
// return means the fetcher itself cannot continue.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*domain.FetchResult, error)
	// FinishTarget notes that one target completed. The browser mode
	// rebuilds its context with fresh fingerprint parameters every
	// 15-25 targets; the HTTP mode re-randomizes per request anyway.
	FinishTarget(ctx context.Context) error
	// Rotate discards the current identity immediately, typically after
	// a block or CAPTCHA.
	Rotate(ctx context.Context) error
	Close() error
}

// New selects the fetch mode from configuration.
func New(
	cfg *fetchconfig.Config,
	proxies ProxySource,
	delays DelaySource,
	log logger.Interface,
) (Fetcher, error) {
	if cfg.UseBrowser {
		return NewBrowser(cfg, proxies, delays, log)
	}
	return NewHTTP(cfg, proxies, delays, log), nil
}

// Proxy failure kinds reported to the pool.
const (
	failureCaptcha   = "captcha"
	failureBlocked   = "blocked"
	failureTransport = "transport"
)

// classify turns a raw response into a FetchResult. The body is always
// inspected; a 200 carrying a challenge page is still a captcha.
func classify(status int, body []byte, elapsed time.Duration, proxyEndpoint string) *domain.FetchResult {
	res := &domain.FetchResult{
		Status:  status,
		Body:    body,
		Elapsed: elapsed,
		Proxy:   proxyEndpoint,
	}

	html := string(body)
	switch {
	case health.IsCaptcha(html):
		res.Outcome = domain.FetchCaptcha
		res.Reason = failureCaptcha
	case health.IsBlocked(status, html):
		res.Outcome = domain.FetchBlocked
		res.Reason = fmt.Sprintf("blocked_status_%d", status)
	case status >= 500:
		res.Outcome = domain.FetchTransient
		res.Reason = fmt.Sprintf("server_error_%d", status)
	case status != 200:
		res.Outcome = domain.FetchTransient
		res.Reason = fmt.Sprintf("unexpected_status_%d", status)
	default:
		res.Outcome = domain.FetchOK
	}
	return res
}

// sleepOrCancel waits d or returns the context error if cancelled first.
func sleepOrCancel(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
