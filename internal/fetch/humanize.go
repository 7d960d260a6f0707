package fetch

import (
	"math/rand"
	"sync"
	"time"
)

// Humanization bounds. Scroll and reading values approximate a person
// skimming one results page; the session pause interrupts long runs of
// evenly spaced requests.
const (
	jitterSpread = 0.25

	scrollStepsMin  = 3
	scrollStepsMax  = 7
	scrollPixelsMin = 200
	scrollPixelsMax = 600
	scrollPauseMin  = 300 * time.Millisecond
	scrollPauseMax  = 1500 * time.Millisecond

	readingTimeMin      = 2 * time.Second
	readingTimeMax      = 30 * time.Second
	readingCharsPerWord = 6
	readingWPMMin       = 200
	readingWPMMax       = 300

	sessionPauseMin = 30 * time.Second
	sessionPauseMax = 90 * time.Second
)

// ScrollStep is one increment of simulated scrolling.
type ScrollStep struct {
	Pixels int
	Pause  time.Duration
}

// Pacer makes every humanized timing decision from one seeded PRNG, so a
// fixed seed reproduces the full pause/scroll/identity sequence while a
// runtime seed keeps behavior unpredictable.
type Pacer struct {
	mu             sync.Mutex
	rng            *rand.Rand
	requests       int
	breakEveryBase int
	sessionLimit   int
}

// NewPacer creates a pacer. A zero seed draws one from the clock. The
// effective session length starts at breakEvery and is re-randomized to
// [breakEvery-5, breakEvery+10] after every break.
func NewPacer(seed int64, breakEvery int) *Pacer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p := &Pacer{
		rng:            rand.New(rand.NewSource(seed)),
		breakEveryBase: breakEvery,
	}
	p.sessionLimit = p.nextSessionLimit()
	return p
}

// nextSessionLimit re-randomizes the session length; callers must hold
// p.mu or have exclusive access.
func (p *Pacer) nextSessionLimit() int {
	lo := p.breakEveryBase - 5
	if lo < 1 {
		lo = 1
	}
	hi := p.breakEveryBase + 10
	return lo + p.rng.Intn(hi-lo+1)
}

// Jitter spreads base uniformly across [-25%, +25%].
func (p *Pacer) Jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	spread := float64(base) * jitterSpread
	offset := (p.rng.Float64()*2 - 1) * spread
	return time.Duration(float64(base) + offset)
}

// NextPause returns the jittered pre-request delay and, when the session
// boundary is reached, an additional long break. The request counter
// resets and the session length re-randomizes after each break.
func (p *Pacer) NextPause(base time.Duration) (delay, sessionBreak time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if base > 0 {
		spread := float64(base) * jitterSpread
		offset := (p.rng.Float64()*2 - 1) * spread
		delay = time.Duration(float64(base) + offset)
	}

	p.requests++
	if p.requests >= p.sessionLimit {
		sessionBreak = p.durationBetween(sessionPauseMin, sessionPauseMax)
		p.requests = 0
		p.sessionLimit = p.nextSessionLimit()
	}
	return delay, sessionBreak
}

// ReadingTime models a person skimming contentLength bytes of page text
// at 200-300 words per minute, clamped to [2s, 30s].
func (p *Pacer) ReadingTime(contentLength int) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	words := contentLength / readingCharsPerWord
	wpm := readingWPMMin + p.rng.Intn(readingWPMMax-readingWPMMin+1)
	d := time.Duration(float64(words) / float64(wpm) * float64(time.Minute))

	if d < readingTimeMin {
		return readingTimeMin
	}
	if d > readingTimeMax {
		return readingTimeMax
	}
	return d
}

// ScrollPlan yields 3-7 scroll increments of 200-600 px with pauses of
// 0.3-1.5 s each.
func (p *Pacer) ScrollPlan() []ScrollStep {
	p.mu.Lock()
	defer p.mu.Unlock()

	steps := scrollStepsMin + p.rng.Intn(scrollStepsMax-scrollStepsMin+1)
	plan := make([]ScrollStep, steps)
	for i := range plan {
		plan[i] = ScrollStep{
			Pixels: scrollPixelsMin + p.rng.Intn(scrollPixelsMax-scrollPixelsMin+1),
			Pause:  p.durationBetween(scrollPauseMin, scrollPauseMax),
		}
	}
	return plan
}

// IntBetween returns a uniform int in [lo, hi].
func (p *Pacer) IntBetween(lo, hi int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if hi <= lo {
		return lo
	}
	return lo + p.rng.Intn(hi-lo+1)
}

// Pick returns a uniform index into a pool of size n.
func (p *Pacer) Pick(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 1 {
		return 0
	}
	return p.rng.Intn(n)
}

// durationBetween is uniform in [lo, hi]; caller holds p.mu.
func (p *Pacer) durationBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(p.rng.Int63n(int64(hi-lo)+1))
}
