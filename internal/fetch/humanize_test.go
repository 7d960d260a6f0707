package fetch_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/jonesrussell/goprospect/internal/fetch"
)

func TestPacer_SeededRunsAreReproducible(t *testing.T) {
	p1 := fetch.NewPacer(42, 50)
	p2 := fetch.NewPacer(42, 50)

	for i := range 20 {
		d1, b1 := p1.NextPause(5 * time.Second)
		d2, b2 := p2.NextPause(5 * time.Second)
		if d1 != d2 || b1 != b2 {
			t.Fatalf("pause %d diverged: (%v,%v) vs (%v,%v)", i, d1, b1, d2, b2)
		}
	}

	if !reflect.DeepEqual(p1.ScrollPlan(), p2.ScrollPlan()) {
		t.Error("scroll plans diverged under identical seeds")
	}
	if p1.ReadingTime(4096) != p2.ReadingTime(4096) {
		t.Error("reading times diverged under identical seeds")
	}
	if !reflect.DeepEqual(fetch.RandomIdentity(p1), fetch.RandomIdentity(p2)) {
		t.Error("identities diverged under identical seeds")
	}
}

func TestPacer_JitterBounds(t *testing.T) {
	p := fetch.NewPacer(7, 50)
	base := 5 * time.Second
	lo := time.Duration(float64(base) * 0.75)
	hi := time.Duration(float64(base) * 1.25)

	for range 200 {
		d := p.Jitter(base)
		if d < lo || d > hi {
			t.Fatalf("Jitter(%v) = %v, want within [%v, %v]", base, d, lo, hi)
		}
	}

	if d := p.Jitter(0); d != 0 {
		t.Errorf("Jitter(0) = %v, want 0", d)
	}
}

func TestPacer_SessionBreak(t *testing.T) {
	p := fetch.NewPacer(11, 50)

	breakAt := 0
	var pause time.Duration
	for i := 1; i <= 60; i++ {
		_, brk := p.NextPause(0)
		if brk > 0 {
			breakAt = i
			pause = brk
			break
		}
	}

	if breakAt < 45 || breakAt > 60 {
		t.Fatalf("session break at request %d, want within [45, 60]", breakAt)
	}
	if pause < 30*time.Second || pause > 90*time.Second {
		t.Errorf("session pause = %v, want within [30s, 90s]", pause)
	}

	// The counter resets, so the next break lands in the next window.
	second := 0
	for i := 1; i <= 60; i++ {
		if _, brk := p.NextPause(0); brk > 0 {
			second = i
			break
		}
	}
	if second < 45 || second > 60 {
		t.Errorf("second session break at request %d, want within [45, 60]", second)
	}
}

func TestPacer_ReadingTimeBounds(t *testing.T) {
	p := fetch.NewPacer(3, 50)

	if d := p.ReadingTime(0); d != 2*time.Second {
		t.Errorf("ReadingTime(0) = %v, want 2s floor", d)
	}
	if d := p.ReadingTime(10_000_000); d != 30*time.Second {
		t.Errorf("ReadingTime(10MB) = %v, want 30s cap", d)
	}

	// 300 bytes is ~50 words: 10-15s at 200-300 wpm, inside the clamp.
	// A millisecond of slack absorbs float truncation at the edges.
	lo, hi := 10*time.Second-time.Millisecond, 15*time.Second+time.Millisecond
	for range 50 {
		d := p.ReadingTime(300)
		if d < lo || d > hi {
			t.Fatalf("ReadingTime(300) = %v, want within [10s, 15s]", d)
		}
	}
}

func TestPacer_ScrollPlanBounds(t *testing.T) {
	p := fetch.NewPacer(19, 50)

	for range 30 {
		plan := p.ScrollPlan()
		if len(plan) < 3 || len(plan) > 7 {
			t.Fatalf("scroll plan has %d steps, want 3-7", len(plan))
		}
		for _, step := range plan {
			if step.Pixels < 200 || step.Pixels > 600 {
				t.Fatalf("scroll step %d px, want 200-600", step.Pixels)
			}
			if step.Pause < 300*time.Millisecond || step.Pause > 1500*time.Millisecond {
				t.Fatalf("scroll pause %v, want 0.3-1.5s", step.Pause)
			}
		}
	}
}

func TestPacer_PickAndIntBetween(t *testing.T) {
	p := fetch.NewPacer(23, 50)

	if got := p.Pick(1); got != 0 {
		t.Errorf("Pick(1) = %d, want 0", got)
	}
	for range 50 {
		if got := p.Pick(5); got < 0 || got > 4 {
			t.Fatalf("Pick(5) = %d, out of range", got)
		}
	}

	if got := p.IntBetween(5, 5); got != 5 {
		t.Errorf("IntBetween(5,5) = %d, want 5", got)
	}
	for range 50 {
		if got := p.IntBetween(15, 25); got < 15 || got > 25 {
			t.Fatalf("IntBetween(15,25) = %d, out of range", got)
		}
	}
}
