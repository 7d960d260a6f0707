package health_test

import (
	"testing"
	"time"

	limiterconfig "github.com/jonesrussell/goprospect/internal/config/limiter"
	"github.com/jonesrussell/goprospect/internal/health"
)

func newTestConfig() *limiterconfig.Config {
	return &limiterconfig.Config{
		BaseDelay:        5 * time.Second,
		MinDelay:         2 * time.Second,
		MaxDelay:         30 * time.Second,
		ErrorThreshold:   0.20,
		CaptchaThreshold: 0.05,
		WindowSize:       100,
	}
}

func TestMonitor_DelayStartsAtBase(t *testing.T) {
	m := health.NewMonitor(newTestConfig())

	if got := m.Delay(); got != 5*time.Second {
		t.Errorf("initial Delay() = %s, want 5s", got)
	}
}

// A failure rate rising past the threshold must strictly grow the delay;
// recovery to a high success rate must decay it back toward base.
func TestMonitor_DelayGrowsOnFailuresAndDecaysOnRecovery(t *testing.T) {
	cfg := newTestConfig()
	m := health.NewMonitor(cfg)

	// Healthy warm-up: delay stays at base.
	for range 70 {
		m.RecordSuccess()
	}
	if got := m.Delay(); got != cfg.BaseDelay {
		t.Fatalf("after warm-up Delay() = %s, want %s", got, cfg.BaseDelay)
	}

	// Push failure rate over 20%.
	for range 30 {
		m.RecordFailure()
	}
	grown := m.Delay()
	if grown <= cfg.BaseDelay {
		t.Fatalf("after failures Delay() = %s, want > %s", grown, cfg.BaseDelay)
	}
	if grown > cfg.MaxDelay {
		t.Fatalf("Delay() = %s exceeded max %s", grown, cfg.MaxDelay)
	}

	// Recover: flood the window with successes until it is ~98% clean.
	for range 120 {
		m.RecordSuccess()
	}
	decayed := m.Delay()
	if decayed >= grown {
		t.Errorf("after recovery Delay() = %s, want < %s", decayed, grown)
	}
	if decayed < cfg.BaseDelay {
		t.Errorf("Delay() decayed to %s, below base %s", decayed, cfg.BaseDelay)
	}
}

func TestMonitor_DelayCapsAtMax(t *testing.T) {
	cfg := newTestConfig()
	m := health.NewMonitor(cfg)

	for range 300 {
		m.RecordBlocked()
	}

	if got := m.Delay(); got != cfg.MaxDelay {
		t.Errorf("Delay() = %s, want pinned at max %s", got, cfg.MaxDelay)
	}
}

func TestMonitor_CaptchaRateTriggersGrowth(t *testing.T) {
	cfg := newTestConfig()
	m := health.NewMonitor(cfg)

	// 6% captchas clears the 5% threshold even with failures below 20%.
	for range 94 {
		m.RecordSuccess()
	}
	for range 6 {
		m.RecordCaptcha()
	}

	if got := m.Delay(); got <= cfg.BaseDelay {
		t.Errorf("Delay() = %s, want growth above base %s", got, cfg.BaseDelay)
	}
}

func TestMonitor_Counters(t *testing.T) {
	m := health.NewMonitor(newTestConfig())

	m.RecordSuccess()
	m.RecordSuccess()
	m.RecordFailure()
	m.RecordBlocked()
	m.RecordCaptcha()
	m.RecordPage(10, 4)

	c := m.Counters()
	if c.Requests != 5 {
		t.Errorf("Requests = %d, want 5", c.Requests)
	}
	if c.Successes != 2 {
		t.Errorf("Successes = %d, want 2", c.Successes)
	}
	if c.Failures != 3 {
		t.Errorf("Failures = %d, want 3", c.Failures)
	}
	if c.Blocks != 1 {
		t.Errorf("Blocks = %d, want 1", c.Blocks)
	}
	if c.Captchas != 1 {
		t.Errorf("Captchas = %d, want 1", c.Captchas)
	}
	if c.ResultsFound != 10 || c.ResultsAccepted != 4 || c.ResultsFiltered != 6 {
		t.Errorf("page counters = %d/%d/%d, want 10/4/6",
			c.ResultsFound, c.ResultsAccepted, c.ResultsFiltered)
	}
}

func TestMonitor_AssessLevels(t *testing.T) {
	t.Run("healthy with clean history", func(t *testing.T) {
		m := health.NewMonitor(newTestConfig())
		for range 50 {
			m.RecordSuccess()
		}

		a := m.Assess()
		if a.Level != health.LevelHealthy {
			t.Errorf("Level = %s, want healthy (issues: %v)", a.Level, a.Issues)
		}
	})

	t.Run("critical after long zero-success run", func(t *testing.T) {
		m := health.NewMonitor(newTestConfig())
		for range 55 {
			m.RecordFailure()
		}

		a := m.Assess()
		if a.Level != health.LevelCritical {
			t.Errorf("Level = %s, want critical (issues: %v)", a.Level, a.Issues)
		}
		if len(a.Actions) == 0 {
			t.Error("expected suggested actions for critical level")
		}
	})

	t.Run("degraded on one soft issue", func(t *testing.T) {
		m := health.NewMonitor(newTestConfig())
		// Failure rate just over the threshold, nothing else wrong: the
		// window stays half empty and the delay stays off the ceiling.
		for range 30 {
			m.RecordSuccess()
		}
		for range 9 {
			m.RecordFailure()
		}

		a := m.Assess()
		if a.Level != health.LevelDegraded {
			t.Errorf("Level = %s, want degraded (issues: %v)", a.Level, a.Issues)
		}
	})
}
