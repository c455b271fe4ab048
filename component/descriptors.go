package component

import (
	"sync"

	"github.com/wasmudf/sandbox-host/vfs"
)

// descriptorTable hands out small integer handles for *vfs.Descriptor
// values crossing the host/guest boundary — wasm exported functions
// can only pass integers, never Go pointers. Handle zero is reserved
// for the VFS root, matching the convention of POSIX fd 0 being a
// distinguished, always-open descriptor rather than "invalid".
type descriptorTable struct {
	mu      sync.Mutex
	next    int32
	entries map[int32]*vfs.Descriptor
}

func newDescriptorTable(root *vfs.Descriptor) *descriptorTable {
	return &descriptorTable{
		next:    1,
		entries: map[int32]*vfs.Descriptor{0: root},
	}
}

func (t *descriptorTable) insert(d *vfs.Descriptor) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.next
	t.next++
	t.entries[h] = d
	return h
}

// get resolves a handle; the second return is false for an unknown or
// already-released handle, mapped by callers to the
// ResourceMoved error kind ("a guest-held handle was consumed;
// further use returns an error rather than unsafe behavior").
func (t *descriptorTable) get(h int32) (*vfs.Descriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.entries[h]
	return d, ok
}

func (t *descriptorTable) release(h int32) {
	if h == 0 {
		return // the root descriptor is never released
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, h)
}
