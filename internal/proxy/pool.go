// Package proxy maintains the pool of outbound identities used by the
// fetcher, with per-entry health scores and blacklisting.
package proxy

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	proxyconfig "github.com/jonesrussell/goprospect/internal/config/proxy"
	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/internal/logger"
)

// Stats is a point-in-time snapshot of pool health.
type Stats struct {
	Total       int
	Eligible    int
	Blacklisted int
	// LastFailures maps endpoint to the most recent failure kind, for
	// entries that have failed at least once.
	LastFailures map[string]string
}

// Pool hands out proxy entries according to the configured strategy and
// retires entries that keep failing. All methods are safe for concurrent
// use by multiple workers.
type Pool struct {
	mu      sync.Mutex
	cfg     *proxyconfig.Config
	logger  logger.Interface
	entries []*domain.ProxyEntry
	direct  *domain.ProxyEntry
	sticky  *domain.ProxyEntry
	cursor  int
	rng     *rand.Rand
	now     func() time.Time
}

// NewPool creates an empty pool. Call Load (or LoadFrom) to populate it;
// an unpopulated pool always hands out the direct identity.
func NewPool(cfg *proxyconfig.Config, log logger.Interface) *Pool {
	return &Pool{
		cfg:    cfg,
		logger: log.WithComponent("proxy"),
		direct: &domain.ProxyEntry{Endpoint: domain.DirectEndpoint, Kind: "direct"},
		cursor: -1,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// Load reads the configured proxy list file. A missing or empty path is
// not an error; proxying is simply disabled.
func (p *Pool) Load() error {
	if p.cfg.File == "" {
		return nil
	}

	f, err := os.Open(p.cfg.File)
	if err != nil {
		return fmt.Errorf("failed to open proxy list %s: %w", p.cfg.File, err)
	}
	defer f.Close()

	if err := p.LoadFrom(f); err != nil {
		return fmt.Errorf("failed to parse proxy list %s: %w", p.cfg.File, err)
	}
	return nil
}

// LoadFrom parses one endpoint per line. Blank lines and # comments are
// skipped; endpoints without a scheme are treated as HTTP proxies.
func (p *Pool) LoadFrom(r io.Reader) error {
	var entries []*domain.ProxyEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "://") {
			line = "http://" + line
		}
		u, err := url.Parse(line)
		if err != nil {
			return fmt.Errorf("invalid proxy endpoint %q: %w", line, err)
		}
		entries = append(entries, &domain.ProxyEntry{
			Endpoint: u.String(),
			Kind:     u.Scheme,
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read proxy list: %w", err)
	}

	p.mu.Lock()
	p.entries = entries
	p.sticky = nil
	p.cursor = -1
	p.mu.Unlock()

	if len(entries) > 0 {
		p.logger.Info("Proxy pool loaded",
			"count", len(entries),
			"strategy", p.cfg.Strategy,
		)
	}
	return nil
}

// Acquire returns an eligible proxy chosen by the configured strategy.
// When the pool is empty or every entry is blacklisted it returns the
// direct sentinel and the caller proceeds without a proxy.
func (p *Pool) Acquire() *domain.ProxyEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry := p.pick(p.now())
	if entry == nil {
		return p.direct
	}
	entry.UseCount++
	return entry
}

// pick selects the next entry under p.mu; nil means none is eligible.
func (p *Pool) pick(now time.Time) *domain.ProxyEntry {
	if len(p.entries) == 0 {
		return nil
	}

	if p.cfg.Strategy == proxyconfig.StrategyStickySession {
		if p.sticky != nil && p.sticky.Eligible(now) {
			return p.sticky
		}
		p.sticky = p.pickRoundRobin(now)
		return p.sticky
	}

	switch p.cfg.Strategy {
	case proxyconfig.StrategyLeastUsed:
		return p.pickLeastUsed(now)
	case proxyconfig.StrategyRandom:
		return p.pickRandom(now)
	default:
		return p.pickRoundRobin(now)
	}
}

func (p *Pool) pickRoundRobin(now time.Time) *domain.ProxyEntry {
	for i := 1; i <= len(p.entries); i++ {
		idx := (p.cursor + i) % len(p.entries)
		if p.entries[idx].Eligible(now) {
			p.cursor = idx
			return p.entries[idx]
		}
	}
	return nil
}

func (p *Pool) pickLeastUsed(now time.Time) *domain.ProxyEntry {
	var best *domain.ProxyEntry
	for _, e := range p.entries {
		if !e.Eligible(now) {
			continue
		}
		if best == nil || e.UseCount < best.UseCount {
			best = e
		}
	}
	return best
}

func (p *Pool) pickRandom(now time.Time) *domain.ProxyEntry {
	eligible := make([]*domain.ProxyEntry, 0, len(p.entries))
	for _, e := range p.entries {
		if e.Eligible(now) {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	return eligible[p.rng.Intn(len(eligible))]
}

// ReportSuccess clears the entry's failure streak. Reporting on the
// direct sentinel is a no-op.
func (p *Pool) ReportSuccess(entry *domain.ProxyEntry) {
	if entry == nil || entry.Direct() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	entry.ConsecutiveFailures = 0
}

// ReportFailure records a failure of the given kind. Once the streak
// reaches the configured threshold the entry is blacklisted and Acquire
// skips it until the blacklist expires.
func (p *Pool) ReportFailure(entry *domain.ProxyEntry, kind string) {
	if entry == nil || entry.Direct() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	entry.ConsecutiveFailures++
	entry.LastFailureReason = kind
	entry.LastFailureAt = now

	if entry.ConsecutiveFailures >= p.cfg.BlacklistAfter && entry.Eligible(now) {
		entry.BlacklistedUntil = now.Add(p.cfg.BlacklistDuration)
		if p.sticky == entry {
			p.sticky = nil
		}
		p.logger.Warn("Proxy blacklisted",
			"endpoint", entry.Endpoint,
			"failures", entry.ConsecutiveFailures,
			"reason", kind,
			"until", entry.BlacklistedUntil.Format(time.RFC3339),
		)
	}
}

// Rotate abandons the current sticky session so the next Acquire picks a
// fresh identity. Harmless under the other strategies.
func (p *Pool) Rotate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sticky = nil
}

// Stats reports pool totals for status displays.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	s := Stats{
		Total:        len(p.entries),
		LastFailures: make(map[string]string),
	}
	for _, e := range p.entries {
		if e.Eligible(now) {
			s.Eligible++
		} else {
			s.Blacklisted++
		}
		if e.LastFailureReason != "" {
			s.LastFailures[e.Endpoint] = e.LastFailureReason
		}
	}
	return s
}

// ProxyFunc adapts the pool to a colly collector's proxy hook. A direct
// acquisition yields a nil URL, which the transport treats as no proxy.
func (p *Pool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(_ *http.Request) (*url.URL, error) {
		entry := p.Acquire()
		if entry.Direct() {
			return nil, nil
		}
		return url.Parse(entry.Endpoint)
	}
}
