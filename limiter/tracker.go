// Package limiter implements the allocation tracker and memory
// limiter: a lock-free monotone counter bounded by a named limit, and
// a bridge from guest memory growth events onto an externally-owned
// memory pool.
package limiter

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// ExceededError is returned by Inc when committing n would exceed the
// tracker's limit.
type ExceededError struct {
	Name      string
	Limit     int64
	Current   int64
	Requested int64
}

func (e *ExceededError) Error() string {
	return errors.Errorf("%s limit reached: limit<=%d current==%d requested+=%d",
		e.Name, e.Limit, e.Current, e.Requested).Error()
}

// Tracker is a named, bounded counter with a lock-free
// compare-and-swap Inc and a Dec that cannot fail.
type Tracker struct {
	current int64
	name    string
	limit   int64
}

// New creates a tracker named name, bounded by limit. A non-positive
// limit means unbounded.
func New(name string, limit int64) *Tracker {
	return &Tracker{name: name, limit: limit}
}

// Name reports the tracker's name, used in ExceededError messages and
// logging.
func (t *Tracker) Name() string { return t.name }

// Current returns the tracker's current value.
func (t *Tracker) Current() int64 { return atomic.LoadInt64(&t.current) }

// Limit returns the configured limit (<=0 means unbounded).
func (t *Tracker) Limit() int64 { return t.limit }

// Inc atomically computes new = current + n and commits it iff
// new <= limit (when limit is positive). On failure, current is left
// unchanged and an *ExceededError describing the rejected request is
// returned.
func (t *Tracker) Inc(n int64) error {
	for {
		cur := atomic.LoadInt64(&t.current)
		next := cur + n
		if t.limit > 0 && next > t.limit {
			return &ExceededError{Name: t.name, Limit: t.limit, Current: cur, Requested: n}
		}
		if atomic.CompareAndSwapInt64(&t.current, cur, next) {
			return nil
		}
	}
}

// Dec atomically subtracts n from current. It cannot fail; current
// never drops below zero regardless of caller bookkeeping mistakes.
func (t *Tracker) Dec(n int64) {
	for {
		cur := atomic.LoadInt64(&t.current)
		next := cur - n
		if next < 0 {
			next = 0
		}
		if atomic.CompareAndSwapInt64(&t.current, cur, next) {
			return
		}
	}
}
