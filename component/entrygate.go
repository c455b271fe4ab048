package component

import "sync"

// entryGate is the concurrency primitive backing guest serialization
// and trap poisoning: a component instance is never concurrent with
// itself, and once a guest entry traps, every subsequent entry —
// regardless of which call trapped it — fails with the same
// diagnostic until the caller reinstantiates.
//
// Factored out of Instance so the poisoning state machine is testable
// without a real wazero engine.
type entryGate struct {
	mu       sync.Mutex
	poisoned bool
}

// enter acquires the gate for the duration of one guest call. It
// returns ErrCannotEnter without blocking if the instance is already
// poisoned — a poisoned instance never blocks new callers, it rejects
// them immediately.
func (g *entryGate) enter() (func(trapped bool), error) {
	g.mu.Lock()
	if g.poisoned {
		g.mu.Unlock()
		return nil, ErrCannotEnter
	}
	exited := false
	exit := func(trapped bool) {
		if exited {
			return
		}
		exited = true
		if trapped {
			g.poisoned = true
		}
		g.mu.Unlock()
	}
	return exit, nil
}

// isPoisoned reports the current state, for diagnostics. It takes the
// gate's mutex, so it waits for an in-progress guest call to exit.
func (g *entryGate) isPoisoned() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.poisoned
}
