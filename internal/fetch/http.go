package fetch

import (
	"context"
	"net/http"
	"net/url"
	"time"

	colly "github.com/gocolly/colly/v2"

	fetchconfig "github.com/jonesrussell/goprospect/internal/config/fetch"
	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/internal/logger"
)

// HTTPFetcher is the plain-HTTP mode. Every request draws a fresh
// identity from the pools, so there is no per-context fingerprint to
// rotate; FinishTarget and Rotate only exist to satisfy the contract.
type HTTPFetcher struct {
	cfg     *fetchconfig.Config
	proxies ProxySource
	delays  DelaySource
	pacer   *Pacer
	logger  logger.Interface
}

// NewHTTP creates the HTTP-mode fetcher.
func NewHTTP(
	cfg *fetchconfig.Config,
	proxies ProxySource,
	delays DelaySource,
	log logger.Interface,
) *HTTPFetcher {
	return &HTTPFetcher{
		cfg:     cfg,
		proxies: proxies,
		delays:  delays,
		pacer:   NewPacer(cfg.HumanizeSeed, cfg.SessionBreakEvery),
		logger:  log.WithComponent("fetch"),
	}
}

// Fetch retrieves one page. Captcha/block/transient outcomes are values
// on the result; an error means the context was cancelled.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*domain.FetchResult, error) {
	entry := f.proxies.Acquire()
	identity := RandomIdentity(f.pacer)

	delay, sessionBreak := f.pacer.NextPause(f.delays.Delay())
	if sessionBreak > 0 {
		f.logger.Info("Taking session break",
			"pause", sessionBreak.Round(time.Second).String(),
		)
		if err := sleepOrCancel(ctx, sessionBreak); err != nil {
			return nil, err
		}
	}
	if err := sleepOrCancel(ctx, delay); err != nil {
		return nil, err
	}

	var (
		status int
		body   []byte
	)
	collector := f.newCollector(ctx, entry, identity)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	start := time.Now()
	visitErr := collector.Visit(pageURL)
	elapsed := time.Since(start)

	if visitErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.proxies.ReportFailure(entry, failureTransport)
		f.logger.Warn("Fetch transport error",
			"url", pageURL,
			"proxy", entry.Endpoint,
			"error", visitErr.Error(),
		)
		return &domain.FetchResult{
			Outcome: domain.FetchTransient,
			Elapsed: elapsed,
			Proxy:   entry.Endpoint,
			Reason:  visitErr.Error(),
		}, nil
	}

	result := classify(status, body, elapsed, entry.Endpoint)
	if result.Denied() {
		f.proxies.ReportFailure(entry, result.Reason)
	} else if result.OK() {
		f.proxies.ReportSuccess(entry)
	}
	return result, nil
}

// newCollector builds a single-shot collector wearing the identity.
func (f *HTTPFetcher) newCollector(
	ctx context.Context,
	entry *domain.ProxyEntry,
	identity Identity,
) *colly.Collector {
	collector := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(identity.UserAgent),
		colly.MaxBodySize(f.cfg.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
	)
	collector.SetRequestTimeout(f.cfg.RequestTimeout)

	if !entry.Direct() {
		collector.SetProxyFunc(func(_ *http.Request) (*url.URL, error) {
			return url.Parse(entry.Endpoint)
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", identity.AcceptLanguage())
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})
	return collector
}

// FinishTarget implements Fetcher; a no-op in HTTP mode.
func (f *HTTPFetcher) FinishTarget(context.Context) error { return nil }

// Rotate implements Fetcher. Identities are per-request already, so this
// only abandons any sticky proxy session.
func (f *HTTPFetcher) Rotate(context.Context) error {
	f.proxies.Rotate()
	return nil
}

// Close implements Fetcher.
func (f *HTTPFetcher) Close() error { return nil }
