package vfs

// Flags is the permission bit set a Descriptor carries.
type Flags uint8

const (
	Read Flags = 1 << iota
	Write
	MutateDirectory
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Descriptor pairs a node with a flag set. Descriptors live in the
// component instance's resource table; the VFS itself only constructs
// and operates on them, it does not own their lifetime.
type Descriptor struct {
	node  *Node
	flags Flags
	// gen is the open sequence number OpenAt assigned (or the value
	// passed to NewDescriptor). No operation in this package reads it;
	// IsSameObject compares nodes, not generations.
	gen uint64
}

// NewDescriptor wraps node with flags. Exported so callers that open
// the VFS root directly (e.g. component instance setup) can mint the
// initial descriptor without going through open_at.
func NewDescriptor(node *Node, flags Flags, gen uint64) *Descriptor {
	return &Descriptor{node: node, flags: flags, gen: gen}
}

// Node returns the descriptor's underlying node.
func (d *Descriptor) Node() *Node { return d.node }

// Flags returns the descriptor's permission bits (the guest's get_flags).
func (d *Descriptor) Flags() Flags { return d.flags }

// GetType returns the node's kind (the guest's get_type).
func (d *Descriptor) GetType() Kind { return d.node.Kind() }
