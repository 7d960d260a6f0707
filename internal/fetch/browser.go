package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	fetchconfig "github.com/jonesrussell/goprospect/internal/config/fetch"
	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/internal/logger"
)

// browserWarmupTimeout bounds the startup probe on a fresh context.
const browserWarmupTimeout = 30 * time.Second

// BrowserFetcher is the headless-browser mode. One browser context lives
// for 15-25 targets and carries a single fingerprint; blocks and CAPTCHAs
// force an early rebuild.
type BrowserFetcher struct {
	mu      sync.Mutex
	cfg     *fetchconfig.Config
	proxies ProxySource
	delays  DelaySource
	pacer   *Pacer
	logger  logger.Interface

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	identity      Identity
	proxyEntry    *domain.ProxyEntry

	targetsDone int
	rotateAfter int
}

// NewBrowser creates the browser-mode fetcher and starts its first
// browser context.
func NewBrowser(
	cfg *fetchconfig.Config,
	proxies ProxySource,
	delays DelaySource,
	log logger.Interface,
) (*BrowserFetcher, error) {
	f := &BrowserFetcher{
		cfg:     cfg,
		proxies: proxies,
		delays:  delays,
		pacer:   NewPacer(cfg.HumanizeSeed, cfg.SessionBreakEvery),
		logger:  log.WithComponent("fetch"),
	}
	f.rotateAfter = f.nextRotationLimit()

	if err := f.buildContext(); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return f, nil
}

// nextRotationLimit randomizes the targets-per-context count around the
// configured nominal value (default 20 gives 15-25).
func (f *BrowserFetcher) nextRotationLimit() int {
	lo := f.cfg.ContextRotationEvery - 5
	if lo < 1 {
		lo = 1
	}
	return f.pacer.IntBetween(lo, f.cfg.ContextRotationEvery+5)
}

// buildContext tears down any existing browser and starts a fresh one
// with new fingerprint parameters and a newly acquired proxy.
func (f *BrowserFetcher) buildContext() error {
	f.teardown()

	f.proxyEntry = f.proxies.Acquire()
	f.identity = RandomIdentity(f.pacer)

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(f.identity.UserAgent),
		chromedp.WindowSize(f.identity.ViewportWidth, f.identity.ViewportHeight),
	)
	if f.cfg.BrowserExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.BrowserExecPath))
	}
	if !f.proxyEntry.Direct() {
		opts = append(opts, chromedp.ProxyServer(f.proxyEntry.Endpoint))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	warmupCtx, warmupCancel := context.WithTimeout(browserCtx, browserWarmupTimeout)
	defer warmupCancel()

	camouflage := camouflageScript(f.identity)
	err := chromedp.Run(warmupCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, scriptErr := page.AddScriptToEvaluateOnNewDocument(camouflage).Do(ctx)
			return scriptErr
		}),
		emulation.SetTimezoneOverride(f.identity.Timezone),
		chromedp.Navigate("about:blank"),
	)
	if err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("browser failed startup probe: %w", err)
	}

	f.allocCancel = allocCancel
	f.browserCtx = browserCtx
	f.browserCancel = browserCancel

	f.logger.Debug("Browser context created",
		"user_agent", f.identity.UserAgent,
		"viewport", fmt.Sprintf("%dx%d", f.identity.ViewportWidth, f.identity.ViewportHeight),
		"timezone", f.identity.Timezone,
		"proxy", f.proxyEntry.Endpoint,
	)
	return nil
}

// teardown cancels the current browser context; callers hold f.mu.
func (f *BrowserFetcher) teardown() {
	if f.browserCancel != nil {
		f.browserCancel()
		f.browserCancel = nil
	}
	if f.allocCancel != nil {
		f.allocCancel()
		f.allocCancel = nil
	}
	f.browserCtx = nil
}

// Fetch retrieves one page through the live browser context, simulating
// scroll and dwell behavior around the navigation.
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*domain.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// A dead context (crashed browser, earlier fatal error) is rebuilt
	// here rather than failing every subsequent request.
	if f.browserCtx == nil || f.browserCtx.Err() != nil {
		if err := f.buildContext(); err != nil {
			return nil, fmt.Errorf("failed to rebuild browser: %w", err)
		}
	}

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

	navCtx, navCancel := context.WithTimeout(f.browserCtx, f.cfg.RequestTimeout)
	defer navCancel()
	stopWatch := context.AfterFunc(ctx, navCancel)
	defer stopWatch()

	// First document response carries the page status.
	var status atomic.Int64
	chromedp.ListenTarget(navCtx, func(ev any) {
		if res, ok := ev.(*network.EventResponseReceived); ok {
			if res.Type == network.ResourceTypeDocument {
				status.CompareAndSwap(0, res.Response.Status)
			}
		}
	})

	start := time.Now()
	runErr := chromedp.Run(navCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if runErr == nil {
		runErr = f.simulateScrolling(navCtx)
	}

	var html string
	if runErr == nil {
		runErr = chromedp.Run(navCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	}
	elapsed := time.Since(start)

	if runErr != nil {
		return f.handleRunError(ctx, runErr, pageURL, elapsed)
	}

	// Linger as if reading before the caller moves on.
	if err := sleepOrCancel(ctx, f.pacer.ReadingTime(len(html))); err != nil {
		return nil, err
	}

	statusCode := int(status.Load())
	if statusCode == 0 {
		statusCode = 200
	}

	result := classify(statusCode, []byte(html), elapsed, f.proxyEntry.Endpoint)
	if result.Denied() {
		f.proxies.ReportFailure(f.proxyEntry, result.Reason)
		f.proxies.Rotate()
		// Burn the context; its fingerprint is flagged.
		if err := f.buildContext(); err != nil {
			f.logger.Error("Failed to rebuild browser after denial", "error", err.Error())
		}
	} else if result.OK() {
		f.proxies.ReportSuccess(f.proxyEntry)
	}
	return result, nil
}

// handleRunError maps a chromedp failure onto the result variants.
func (f *BrowserFetcher) handleRunError(
	ctx context.Context,
	runErr error,
	pageURL string,
	elapsed time.Duration,
) (*domain.FetchResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	proxyEndpoint := f.proxyEntry.Endpoint
	f.proxies.ReportFailure(f.proxyEntry, failureTransport)

	if errors.Is(runErr, context.DeadlineExceeded) {
		f.logger.Warn("Fetch timed out", "url", pageURL)
		return &domain.FetchResult{
			Outcome: domain.FetchTransient,
			Elapsed: elapsed,
			Proxy:   proxyEndpoint,
			Reason:  "timeout",
		}, nil
	}

	// Anything else means the browser itself is unhealthy; the next
	// Fetch rebuilds the context.
	f.teardown()
	f.logger.Error("Browser navigation failed",
		"url", pageURL,
		"error", runErr.Error(),
	)
	return &domain.FetchResult{
		Outcome: domain.FetchFatal,
		Elapsed: elapsed,
		Proxy:   proxyEndpoint,
		Reason:  runErr.Error(),
	}, nil
}

// simulateScrolling walks the pacer's scroll plan down the page.
func (f *BrowserFetcher) simulateScrolling(ctx context.Context) error {
	for _, step := range f.pacer.ScrollPlan() {
		script := fmt.Sprintf("window.scrollBy(0, %d)", step.Pixels)
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, nil)); err != nil {
			return err
		}
		if err := sleepOrCancel(ctx, step.Pause); err != nil {
			return err
		}
	}
	return nil
}

// FinishTarget counts completed targets and rotates the browser context
// at the randomized threshold.
func (f *BrowserFetcher) FinishTarget(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.targetsDone++
	if f.targetsDone < f.rotateAfter {
		return nil
	}

	f.logger.Info("Rotating browser context",
		"targets_done", f.targetsDone,
	)
	f.targetsDone = 0
	f.rotateAfter = f.nextRotationLimit()
	if err := f.buildContext(); err != nil {
		return fmt.Errorf("failed to rotate browser context: %w", err)
	}
	return nil
}

// Rotate rebuilds the browser context immediately.
func (f *BrowserFetcher) Rotate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.proxies.Rotate()
	if err := f.buildContext(); err != nil {
		return fmt.Errorf("failed to rotate browser context: %w", err)
	}
	return nil
}

// Close tears down the browser.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardown()
	return nil
}

// camouflageScript renders the navigator overrides for one identity. It
// runs before every document load in the context: webdriver hidden, a
// plausible plugin list, the identity's hardware hints, and chromedriver
// sentinels removed.
func camouflageScript(id Identity) string {
	languages, _ := json.Marshal(id.Languages)
	return fmt.Sprintf(`
Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });
Object.defineProperty(navigator, 'plugins', {
	get: () => [
		{ name: 'PDF Viewer', filename: 'internal-pdf-viewer' },
		{ name: 'Chrome PDF Viewer', filename: 'internal-pdf-viewer' },
		{ name: 'Chromium PDF Viewer', filename: 'internal-pdf-viewer' }
	],
	configurable: true
});
Object.defineProperty(navigator, 'languages', { get: () => %s, configurable: true });
Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d, configurable: true });
Object.defineProperty(navigator, 'deviceMemory', { get: () => %d, configurable: true });
if (!window.chrome) { window.chrome = {}; }
if (!window.chrome.runtime) { window.chrome.runtime = {}; }
for (const key of Object.keys(window)) {
	if (key.indexOf('cdc_') === 0 || key.indexOf('$cdc_') === 0) { delete window[key]; }
}
`, languages, id.HardwareConcurrency, id.DeviceMemory)
}
