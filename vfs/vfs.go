// Package vfs implements the sandbox's in-memory, read-only-by-default
// virtual filesystem: a tree of nodes populated from a TAR
// image, addressable through pathgrammar, accounted in bytes and
// inodes against a limiter.Memory.
package vfs

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"hash/maphash"
	"io"
	"sync/atomic"

	"github.com/wasmudf/sandbox-host/limiter"
	"github.com/wasmudf/sandbox-host/pathgrammar"
)

// Limits bounds path parsing and the inode count for every VFS
// operation. Bytes is carried but not read by this package: file and
// name bytes are charged only against the limiter.Memory passed to New.
type Limits struct {
	Inodes             int64
	Bytes              int64
	MaxPathLength      int
	MaxPathSegmentSize int
}

// VFS is a single-root tree, an inode tracker, a creation-time hash
// key, and a reference to the memory limiter it charges bytes against.
type VFS struct {
	root     *Node
	inodes   *limiter.Tracker
	mem      *limiter.Memory
	hashKey  uint64
	hashSeed maphash.Seed
	pathLim  pathgrammar.Limits

	nextGen atomic.Uint64
	nextIno atomic.Uint64
}

// New constructs an empty VFS (a single empty root directory), ready
// to be populated by PopulateFromTAR.
func New(mem *limiter.Memory, lim Limits) *VFS {
	v := &VFS{
		inodes:   limiter.New("vfs inodes", lim.Inodes),
		mem:      mem,
		hashKey:  randomHashKey(),
		hashSeed: maphash.MakeSeed(),
		pathLim:  pathgrammar.Limits{MaxPathLength: lim.MaxPathLength, MaxPathSegmentSize: lim.MaxPathSegmentSize},
	}
	v.root = newDir(v.allocIno(), nil, "")
	_ = v.inodes.Inc(1) // the root itself occupies one inode
	return v
}

func randomHashKey() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func (v *VFS) allocIno() uint64 { return v.nextIno.Add(1) }

// Root returns the VFS's root directory node.
func (v *VFS) Root() *Node { return v.root }

// ParsePath parses p under the VFS's configured path limits.
func (v *VFS) ParsePath(p string) (pathgrammar.Parsed, error) {
	return pathgrammar.Parse(p, v.pathLim)
}

// PopulateFromTAR reads a TAR archive and inserts every Directory and
// Regular entry into the tree, per the five-step algorithm.
// Any other entry type (symlink, device, fifo, ...) is rejected as
// Unsupported. Failures roll back the inode allocation they made but
// not prior entries: a partially-ingested image is a construction
// error the caller should treat as fatal, not as "best effort".
func (v *VFS) PopulateFromTAR(r TarReader) error {
	for {
		hdr, data, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := v.insertTarEntry(hdr, data); err != nil {
			return err
		}
	}
}

// TarReader abstracts archive/tar.Reader so tests can supply synthetic
// entries without constructing real TAR bytes for every case. The
// production implementation wraps tar.NewReader, matching stat io
// sequencing (header, then exactly hdr.Size bytes of content).
type TarReader interface {
	// Next returns the next header and, for regular files, its full
	// content. It returns io.EOF when the archive is exhausted.
	Next() (TarHeader, []byte, error)
}

// TarHeader is the subset of archive/tar.Header the VFS cares about.
type TarHeader struct {
	Name     string
	Typeflag byte
	Size     int64
}

const (
	TypeReg byte = '0'
	TypeDir byte = '5'
)

func (v *VFS) insertTarEntry(hdr TarHeader, data []byte) error {
	switch hdr.Typeflag {
	case TypeDir, TypeReg:
	default:
		return newErr(ErrUnsupported, hdr.Name)
	}

	name := hdr.Name
	if hdr.Typeflag == TypeDir {
		// TAR directory entries conventionally carry a trailing "/".
		for len(name) > 1 && name[len(name)-1] == '/' {
			name = name[:len(name)-1]
		}
	}
	parsed, err := v.ParsePath(name)
	if err != nil {
		return err
	}
	parentPath, segment, err := splitParent(parsed)
	if err != nil {
		return newErr(ErrInvalid, hdr.Name)
	}
	parent, err := Traverse(v.root, v.root, parentPath)
	if err != nil {
		return err
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.kind != Directory {
		return newErr(ErrNotDirectory, hdr.Name)
	}
	if _, exists := parent.children[segment]; exists {
		return newErr(ErrExist, hdr.Name)
	}

	if err := v.inodes.Inc(1); err != nil {
		return err
	}
	if err := v.mem.Grow(int64(len(segment)) + handleCost); err != nil {
		v.inodes.Dec(1)
		return err
	}

	var child *Node
	if hdr.Typeflag == TypeDir {
		child = newDir(v.allocIno(), parent, segment)
	} else {
		if err := v.mem.Grow(hdr.Size); err != nil {
			v.inodes.Dec(1)
			v.mem.Shrink(int64(len(segment)) + handleCost)
			return err
		}
		if int64(len(data)) != hdr.Size {
			v.inodes.Dec(1)
			v.mem.Shrink(int64(len(segment)) + handleCost + hdr.Size)
			return newErr(ErrInvalid, hdr.Name+": short read")
		}
		child = newFile(v.allocIno(), parent, segment, data)
	}
	parent.children[segment] = child
	parent.order = append(parent.order, segment)
	return nil
}

// bytesReaderAt adapts []byte to io.ReaderAt for read_via_stream.
type bytesReaderAt struct{ b []byte }

func (r bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.b)) {
		return 0, io.EOF
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// metadataHash is a deterministic hash seeded by the VFS's
// creation-time key. Timestamps are not modeled, so only type and size
// feed the hash; the key still keeps the digest from being a
// cross-instance oracle for an otherwise-constant computation.
func (v *VFS) metadataHash(n *Node) uint64 {
	var h maphash.Hash
	h.SetSeed(v.hashSeed)
	var buf bytes.Buffer
	buf.WriteByte(byte(n.Kind()))
	var szb [8]byte
	binary.LittleEndian.PutUint64(szb[:], uint64(n.Size()))
	buf.Write(szb[:])
	var keyb [8]byte
	binary.LittleEndian.PutUint64(keyb[:], v.hashKey)
	buf.Write(keyb[:])
	_, _ = h.Write(buf.Bytes())
	return h.Sum64()
}
