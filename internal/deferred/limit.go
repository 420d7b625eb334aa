package deferred

// passQuota counts resolution passes of one fixpoint loop and enforces
// the configured maximum.
//
// It catches backends that keep deferring new records (linear explosion).
// Cycles between already-known records cannot loop because resolved
// placeholders are never resolved twice.
type passQuota struct {
	max     int // 0 disables the limit
	current int
}

func newPassQuota(max int) *passQuota {
	return &passQuota{max: max}
}

// Check increments the pass counter and reports whether another pass is
// allowed.
func (q *passQuota) Check() bool {
	q.current++
	return q.max <= 0 || q.current <= q.max
}

// Current returns the number of passes counted so far.
func (q *passQuota) Current() int {
	return q.current
}
