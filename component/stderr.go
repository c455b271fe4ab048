package component

import (
	"sync"

	"github.com/wasmudf/sandbox-host/limiter"
)

// capturedStderr is the "captured stderr pipe": a byte sink
// capped at Permissions.StderrBytes and reserved up-front against the
// memory pool (the "Memory-pool sharing": "the captured-stderr
// buffer is reserved up-front against the pool").
type capturedStderr struct {
	mu   sync.Mutex
	buf  []byte
	cap  int64
	mem  *limiter.Memory
}

func newCapturedStderr(mem *limiter.Memory, capBytes int64) (*capturedStderr, error) {
	if capBytes > 0 {
		if err := mem.Grow(capBytes); err != nil {
			return nil, newErr(KindResourcesExhausted, err, "reserve captured-stderr buffer")
		}
	}
	return &capturedStderr{cap: capBytes, mem: mem}, nil
}

// Write appends p to the captured buffer, silently truncating once
// the cap is reached rather than failing the guest write: stderr is
// diagnostic output, not a resource guests are expected to budget.
func (s *capturedStderr) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.cap - int64(len(s.buf))
	if room <= 0 {
		return len(p), nil
	}
	if int64(len(p)) > room {
		p = p[:room]
	}
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Bytes returns the first kilobytes of captured stderr, surfaced in
// error reports so a failing UDF's own diagnostics reach the caller.
func (s *capturedStderr) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

func (s *capturedStderr) release() {
	if s.cap > 0 {
		s.mem.Shrink(s.cap)
	}
}
