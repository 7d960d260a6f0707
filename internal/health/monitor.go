package health

import (
	"sync"
	"time"

	limiterconfig "github.com/jonesrussell/goprospect/internal/config/limiter"
)

// Adaptive delay multipliers.
const (
	multiplierUp   = 1.5
	multiplierDown = 0.75

	// recoverSuccessRate is the recent success rate above which the delay
	// decays back toward base.
	recoverSuccessRate = 0.95
	// recoverCaptchaRate is the recent captcha rate below which decay is
	// allowed.
	recoverCaptchaRate = 0.01

	// criticalZeroSuccessStreak marks the monitor critical on its own.
	criticalZeroSuccessStreak = 50

	// Issue counts for the advisory levels.
	unhealthyIssueCount = 2
	criticalIssueCount  = 4
)

// Level is the advisory health classification of a worker.
type Level string

const (
	// LevelHealthy means no issues.
	LevelHealthy Level = "healthy"
	// LevelDegraded means exactly one soft issue.
	LevelDegraded Level = "degraded"
	// LevelUnhealthy means two or three issues.
	LevelUnhealthy Level = "unhealthy"
	// LevelCritical means four or more issues, or a long zero-success run.
	LevelCritical Level = "critical"
)

// Counters is a snapshot of the cumulative totals.
type Counters struct {
	Requests        int64 `json:"requests"`
	Successes       int64 `json:"successes"`
	Failures        int64 `json:"failures"`
	Blocks          int64 `json:"blocks"`
	Captchas        int64 `json:"captchas"`
	ResultsFound    int64 `json:"results_found"`
	ResultsAccepted int64 `json:"results_accepted"`
	ResultsFiltered int64 `json:"results_filtered"`
}

// Assessment is the advisory verdict returned by Assess.
type Assessment struct {
	Level   Level    `json:"level"`
	Issues  []string `json:"issues"`
	Actions []string `json:"actions"`
}

// Monitor tracks recent request outcomes for one worker and derives the
// adaptive delay. Safe for concurrent use.
type Monitor struct {
	mu sync.Mutex

	cfg      *limiterconfig.Config
	counters Counters

	recentSuccess *boolRing
	recentFailure *boolRing
	recentCaptcha *boolRing

	delay             time.Duration
	zeroSuccessStreak int
}

// NewMonitor creates a monitor with the delay at the configured base.
func NewMonitor(cfg *limiterconfig.Config) *Monitor {
	if cfg == nil {
		defaults := limiterconfig.Config{
			BaseDelay:        limiterconfig.DefaultBaseDelay,
			MinDelay:         limiterconfig.DefaultMinDelay,
			MaxDelay:         limiterconfig.DefaultMaxDelay,
			ErrorThreshold:   limiterconfig.DefaultErrorThreshold,
			CaptchaThreshold: limiterconfig.DefaultCaptchaThreshold,
			WindowSize:       limiterconfig.DefaultWindowSize,
		}
		cfg = &defaults
	}
	return &Monitor{
		cfg:           cfg,
		recentSuccess: newBoolRing(cfg.WindowSize),
		recentFailure: newBoolRing(cfg.WindowSize),
		recentCaptcha: newBoolRing(cfg.WindowSize),
		delay:         cfg.BaseDelay,
	}
}

// RecordSuccess records one successful page fetch.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.Requests++
	m.counters.Successes++
	m.recentSuccess.push(true)
	m.recentFailure.push(false)
	m.recentCaptcha.push(false)
	m.zeroSuccessStreak = 0
	m.recompute()
}

// RecordFailure records one failed page fetch (network or non-block HTTP
// error).
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.Requests++
	m.counters.Failures++
	m.recentSuccess.push(false)
	m.recentFailure.push(true)
	m.recentCaptcha.push(false)
	m.zeroSuccessStreak++
	m.recompute()
}

// RecordBlocked records a refused request.
func (m *Monitor) RecordBlocked() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.Requests++
	m.counters.Failures++
	m.counters.Blocks++
	m.recentSuccess.push(false)
	m.recentFailure.push(true)
	m.recentCaptcha.push(false)
	m.zeroSuccessStreak++
	m.recompute()
}

// RecordCaptcha records a challenge page.
func (m *Monitor) RecordCaptcha() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.Requests++
	m.counters.Failures++
	m.counters.Captchas++
	m.recentSuccess.push(false)
	m.recentFailure.push(true)
	m.recentCaptcha.push(true)
	m.zeroSuccessStreak++
	m.recompute()
}

// RecordPage records parse/filter volume for one completed page.
func (m *Monitor) RecordPage(found, accepted int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.ResultsFound += int64(found)
	m.counters.ResultsAccepted += int64(accepted)
	m.counters.ResultsFiltered += int64(found - accepted)
}

// Delay returns the current adaptive delay.
func (m *Monitor) Delay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delay
}

// Counters returns a snapshot of the cumulative totals.
func (m *Monitor) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters
}

// recompute applies the adaptive delay rule. Caller holds the lock.
//
// Growth: recent failure rate above the error threshold, or recent captcha
// rate above the captcha threshold, multiplies the delay by 1.5 up to max.
// Decay: recent success above 95% and captchas below 1% multiplies by 0.75
// down to base (never below min). Otherwise the delay is unchanged.
func (m *Monitor) recompute() {
	failureRate := m.recentFailure.rate()
	captchaRate := m.recentCaptcha.rate()
	successRate := m.recentSuccess.rate()

	switch {
	case failureRate > m.cfg.ErrorThreshold || captchaRate > m.cfg.CaptchaThreshold:
		grown := time.Duration(float64(m.delay) * multiplierUp)
		if grown > m.cfg.MaxDelay {
			grown = m.cfg.MaxDelay
		}
		m.delay = grown
	case successRate > recoverSuccessRate && captchaRate < recoverCaptchaRate && m.delay > m.cfg.BaseDelay:
		decayed := time.Duration(float64(m.delay) * multiplierDown)
		if decayed < m.cfg.BaseDelay {
			decayed = m.cfg.BaseDelay
		}
		if decayed < m.cfg.MinDelay {
			decayed = m.cfg.MinDelay
		}
		m.delay = decayed
	}
}

// Assess classifies the worker's condition and suggests actions. The
// caller is not required to obey the suggestions but must log critical.
func (m *Monitor) Assess() Assessment {
	m.mu.Lock()
	defer m.mu.Unlock()

	var issues, actions []string

	if rate := m.recentFailure.rate(); rate > m.cfg.ErrorThreshold {
		issues = append(issues, "elevated failure rate")
		actions = append(actions, "slow down requests")
	}
	if rate := m.recentCaptcha.rate(); rate > m.cfg.CaptchaThreshold {
		issues = append(issues, "elevated captcha rate")
		actions = append(actions, "rotate user agent and browser context")
	}
	if m.counters.Blocks > 0 && m.counters.Requests > 0 {
		if float64(m.counters.Blocks)/float64(m.counters.Requests) > m.cfg.ErrorThreshold {
			issues = append(issues, "high cumulative block share")
			actions = append(actions, "take a session break")
		}
	}
	if m.recentSuccess.size() >= m.cfg.WindowSize/2 && m.recentSuccess.rate() < 0.5 {
		issues = append(issues, "recent success below half")
		actions = append(actions, "check selectors for drift")
	}
	if m.delay >= m.cfg.MaxDelay {
		issues = append(issues, "delay pinned at max")
		actions = append(actions, "pause the shard and investigate")
	}

	level := LevelHealthy
	switch {
	case m.zeroSuccessStreak >= criticalZeroSuccessStreak || len(issues) >= criticalIssueCount:
		level = LevelCritical
	case len(issues) >= unhealthyIssueCount:
		level = LevelUnhealthy
	case len(issues) == 1:
		level = LevelDegraded
	}

	if m.zeroSuccessStreak >= criticalZeroSuccessStreak {
		issues = append(issues, "no success in 50+ consecutive requests")
		actions = append(actions, "stop and investigate before resuming")
	}

	return Assessment{Level: level, Issues: issues, Actions: actions}
}
