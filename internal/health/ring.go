package health

// boolRing is a fixed-capacity ring buffer of booleans. Once full, each
// push evicts the oldest entry. Not safe for concurrent use; the Monitor
// holds the lock.
type boolRing struct {
	buf   []bool
	next  int
	count int
}

func newBoolRing(capacity int) *boolRing {
	return &boolRing{buf: make([]bool, capacity)}
}

// push records one value, evicting the oldest when full.
func (r *boolRing) push(v bool) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// trueCount returns how many recorded values are true.
func (r *boolRing) trueCount() int {
	n := 0
	for i := range r.count {
		if r.at(i) {
			n++
		}
	}
	return n
}

// rate returns the fraction of recorded values that are true, or 0 when
// nothing has been recorded.
func (r *boolRing) rate() float64 {
	if r.count == 0 {
		return 0
	}
	return float64(r.trueCount()) / float64(r.count)
}

// at returns the i-th oldest value, i in [0, count).
func (r *boolRing) at(i int) bool {
	if r.count < len(r.buf) {
		return r.buf[i]
	}
	return r.buf[(r.next+i)%len(r.buf)]
}

func (r *boolRing) size() int { return r.count }
