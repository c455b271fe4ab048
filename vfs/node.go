package vfs

import (
	"sort"
	"sync"

	"github.com/fvbommel/sortorder"
)

// Kind distinguishes a file node from a directory node.
type Kind int

const (
	File Kind = iota
	Directory
)

// handleCost approximates the per-child bookkeeping overhead charged
// against the memory limiter alongside the name bytes themselves
// (this module: "memory.grow(|segment| + sizeof(handle))").
const handleCost = 48

// Node is one entry of the in-memory VFS tree: a file (byte vector) or
// a directory (name -> child map). Every non-root node holds a back
// reference to its parent.
//
// A reference-counted implementation would need the parent link to be
// a weak back-reference to avoid a cycle; Go's GC traces and collects
// cycles directly, so a plain pointer here carries no memory-safety
// risk, and the invariant "every back-reference points to the actual
// parent" is preserved by construction (only newDir/newFile set it, and
// it is never reassigned).
type Node struct {
	mu sync.RWMutex

	kind   Kind
	ino    uint64
	parent *Node
	self   string // this node's segment name in its parent, "" for root

	// directory state
	children map[string]*Node
	order    []string // insertion order, for a stable source before sorting

	// file state
	data []byte

	// mtime/ctime are not modeled. changeTick is never advanced and is
	// not read by metadataHash.
	changeTick uint64
}

func newDir(ino uint64, parent *Node, self string) *Node {
	return &Node{kind: Directory, ino: ino, parent: parent, self: self, children: make(map[string]*Node)}
}

func newFile(ino uint64, parent *Node, self string, data []byte) *Node {
	return &Node{kind: File, ino: ino, parent: parent, self: self, data: data}
}

// Kind reports whether n is a file or a directory.
func (n *Node) Kind() Kind {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kind
}

// Size returns the byte length of a file node, or the child count of a
// directory node.
func (n *Node) Size() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.kind == File {
		return int64(len(n.data))
	}
	return int64(len(n.children))
}

// Parent returns the node's parent, or nil at the root.
func (n *Node) Parent() *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent
}

// lookupLocked finds a direct child by segment name. Caller must hold n.mu
// for reading (or not care about races, as in tests).
func (n *Node) lookupLocked(seg string) (*Node, bool) {
	c, ok := n.children[seg]
	return c, ok
}

// DirEntry is one entry produced by ReadDirectory: a child's name and
// kind.
type DirEntry struct {
	Name string
	Kind Kind
}

// ReadDirectory produces the directory's children sorted by natural
// order: insertion-ordered internally, but emitted sorted, using the
// fvbommel/sortorder natural-sort comparator ("file2" before "file10").
func (n *Node) ReadDirectory() ([]DirEntry, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.kind != Directory {
		return nil, newErr(ErrNotDirectory, n.self)
	}
	names := make([]string, 0, len(n.children))
	for _, name := range n.order {
		names = append(names, name)
	}
	sort.Sort(sortorder.Natural(names))
	entries := make([]DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, DirEntry{Name: name, Kind: n.children[name].kind})
	}
	return entries, nil
}

// IsSameObject reports whether a and b are (transitively, through
// descriptors) backed by the identical node, by pointer identity.
func IsSameObject(a, b *Node) bool { return a == b }
