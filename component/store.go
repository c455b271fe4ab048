package component

import (
	"github.com/wasmudf/sandbox-host/capconfig"
	"github.com/wasmudf/sandbox-host/httpcap"
	"github.com/wasmudf/sandbox-host/limiter"
	"github.com/wasmudf/sandbox-host/vfs"
)

// guestState is the "store's mutable state": the engine-side
// bundle a component instance's bindings close over. It is never
// accessed concurrently with itself — every guest entry point is
// serialized by Instance.gate.
type guestState struct {
	vfs         *vfs.VFS
	descriptors *descriptorTable
	mem         *limiter.Memory
	stderr      *capturedStderr
	envs        map[string]string
	http        httpcap.Validator
	source      string
}

func newGuestState(pool limiter.MemoryPool, perm capconfig.Permissions, source string) (*guestState, error) {
	mem := limiter.NewMemory(pool, perm.ResourceLimits)
	if err := mem.NewInstance(); err != nil {
		return nil, newErr(KindResourcesExhausted, err, "instance count limit")
	}

	fs := vfs.New(mem, perm.VFS)
	root := vfs.NewDescriptor(fs.Root(), vfs.Read|vfs.Write|vfs.MutateDirectory, 0)

	stderr, err := newCapturedStderr(mem, perm.StderrBytes)
	if err != nil {
		mem.DropInstance()
		return nil, err
	}

	http := perm.HTTP
	if http == nil {
		http = httpcap.RejectAll{}
	}

	return &guestState{
		vfs:         fs,
		descriptors: newDescriptorTable(root),
		mem:         mem,
		stderr:      stderr,
		envs:        perm.Envs,
		http:        http,
		source:      source,
	}, nil
}

func (s *guestState) close() {
	s.stderr.release()
	s.mem.DropInstance()
}
