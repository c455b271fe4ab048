package limiter

// ResourceLimits are the static per-instance caps. NInstances is
// checked synchronously at creation time, never retroactively. A
// table/element/memory-count cap was considered (see DESIGN.md) but
// dropped: wazero's public CompiledModule API exposes no
// pre-instantiation table introspection, and without the multi-memory
// proposal enabled a module has exactly one linear memory, so a count
// cap on either dimension would check nothing meaningful.
type ResourceLimits struct {
	NInstances int
}

// Memory bridges a guest's linear-memory growth events to an external
// MemoryPool reservation, and enforces the static instance-count cap
// that gates component instance creation.
type Memory struct {
	pool   MemoryPool
	limits ResourceLimits

	instances *Tracker
}

// NewMemory constructs a Memory limiter wrapping pool, bounded by
// limits. A Tracker limit of zero means "unbounded".
func NewMemory(pool MemoryPool, limits ResourceLimits) *Memory {
	return &Memory{
		pool:      pool,
		limits:    limits,
		instances: New("instances", int64(limits.NInstances)),
	}
}

// Grow translates a guest memory-growth request of delta bytes into a
// pool reservation. Failure propagates as an allocation-denied signal
// to the guest (the caller maps this into the wasm runtime's own
// "memory growth failed" return value rather than trapping).
func (m *Memory) Grow(delta int64) error {
	if delta <= 0 {
		return nil
	}
	return m.pool.Grow(delta)
}

// Shrink releases delta bytes back to the pool, e.g. on instance
// teardown or table/stderr buffer release.
func (m *Memory) Shrink(delta int64) {
	if delta <= 0 {
		return
	}
	m.pool.Shrink(delta)
}

// NewInstance is called synchronously when a new component instance is
// about to be created; it is rejected before any wasm engine work
// happens if the static instance cap would be exceeded.
func (m *Memory) NewInstance() error { return m.instances.Inc(1) }

// DropInstance releases one unit of the instance cap.
func (m *Memory) DropInstance() { m.instances.Dec(1) }
