package component

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"golang.org/x/sync/errgroup"
)

// engineHandle is a "weak engine handle" in the sense the
// construction sequence describes: the epoch-tick goroutine holds one
// of these rather than a direct *wazero.Runtime reference, so that it
// can detect the owning Instance having been dropped and exit instead
// of keeping the runtime alive on its own.
type engineHandle struct {
	mu    sync.RWMutex
	rt    wazero.Runtime
	alive bool
	epoch atomic.Uint64
}

func newEngineHandle(rt wazero.Runtime) *engineHandle {
	return &engineHandle{rt: rt, alive: true}
}

// upgrade mirrors a Weak::upgrade(): it returns the runtime and true
// while the handle is alive, or (nil, false) once drop has run.
func (h *engineHandle) upgrade() (wazero.Runtime, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.alive {
		return nil, false
	}
	return h.rt, true
}

func (h *engineHandle) drop() {
	h.mu.Lock()
	h.alive = false
	h.mu.Unlock()
}

// startEpochTicker launches the background tick task: every
// tickPeriod, it upgrades the weak engine handle; while alive it
// advances the monotonic epoch counter; once the handle reports dead,
// the goroutine exits. Ticks use delay-on-miss semantics: the timer is
// re-armed for a full period only after each tick has been handled, so
// a late tick defers the next one instead of firing back-to-back.
//
// wazero's low-level epoch-counter ABI is intentionally not called
// into directly here (see DESIGN.md): the cooperative-preemption
// contract is instead realized at the call boundary via a
// context.Context deadline of epoch_tick_time *
// inplace_blocking_max_ticks (callWithBudget), combined with
// RuntimeConfig.WithCloseOnContextDone; the epoch counter itself does
// not feed that deadline.
func startEpochTicker(ctx context.Context, g *errgroup.Group, handle *engineHandle, tickPeriod time.Duration) {
	g.Go(func() error {
		timer := time.NewTimer(tickPeriod)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
				if _, alive := handle.upgrade(); !alive {
					return nil
				}
				handle.epoch.Add(1)
				timer.Reset(tickPeriod)
			}
		}
	})
}

// callWithBudget derives a bounded context for one synchronous,
// in-place-blocking host call (the "blocking budget"):
// epoch_tick_time * inplace_blocking_max_ticks. Exceeding it is
// reported as an I/O-shaped error by the caller rather than wedging
// the executor.
func callWithBudget(parent context.Context, tickPeriod time.Duration, maxTicks uint64) (context.Context, context.CancelFunc) {
	if maxTicks == 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, tickPeriod*time.Duration(maxTicks))
}
