package vfs

import "io"

// Stat is the metadata the guest's `stat` call reports: kind, a fixed
// link count of 1 (this filesystem has no hardlinks), and size.
// Timestamps are not modeled.
type Stat struct {
	Kind      Kind
	LinkCount int
	Size      int64
}

// Stat returns descriptor metadata (the guest's `stat`).
func (v *VFS) Stat(d *Descriptor) Stat {
	n := d.node
	return Stat{Kind: n.Kind(), LinkCount: 1, Size: n.Size()}
}

// StatAt resolves path relative to d and stats the result
// (`stat_at`).
func (v *VFS) StatAt(d *Descriptor, path string) (Stat, error) {
	n, err := v.resolve(d, path)
	if err != nil {
		return Stat{}, err
	}
	return Stat{Kind: n.Kind(), LinkCount: 1, Size: n.Size()}, nil
}

// MetadataHash returns a deterministic digest over the descriptor's
// (type, size) seeded by the VFS's creation-time key (`metadata_hash`).
func (v *VFS) MetadataHash(d *Descriptor) uint64 { return v.metadataHash(d.node) }

// MetadataHashAt resolves path relative to d and hashes the result
// (`metadata_hash_at`).
func (v *VFS) MetadataHashAt(d *Descriptor, path string) (uint64, error) {
	n, err := v.resolve(d, path)
	if err != nil {
		return 0, err
	}
	return v.metadataHash(n), nil
}

func (v *VFS) resolve(d *Descriptor, path string) (*Node, error) {
	parsed, err := v.ParsePath(path)
	if err != nil {
		return nil, err
	}
	return Traverse(v.root, d.node, parsed)
}

// ReadDirectory lists d's children, sorted, if d is a directory
// (`read_directory`).
func (v *VFS) ReadDirectory(d *Descriptor) ([]DirEntry, error) {
	return d.node.ReadDirectory()
}

// Read returns up to length bytes from d starting at offset, and
// whether offset has reached end-of-file (`read`). d must be a file.
func (v *VFS) Read(d *Descriptor, length int, offset int64) ([]byte, bool, error) {
	n := d.node
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.kind != File {
		return nil, false, newErr(ErrInvalid, "read of a non-file")
	}
	if offset >= int64(len(n.data)) {
		return []byte{}, true, nil
	}
	end := offset + int64(length)
	if end > int64(len(n.data)) {
		end = int64(len(n.data))
	}
	out := make([]byte, end-offset)
	copy(out, n.data[offset:end])
	return out, false, nil
}

// ReadViaStream returns an io.Reader over d's bytes starting at
// offset. d must be a file (`read_via_stream`).
func (v *VFS) ReadViaStream(d *Descriptor, offset int64) (io.Reader, error) {
	n := d.node
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.kind != File {
		return nil, newErr(ErrInvalid, "read_via_stream of a non-file")
	}
	return io.NewSectionReader(bytesReaderAt{n.data}, offset, int64(len(n.data))-offset), nil
}

// CreateDirectoryAt creates a new empty directory at path relative to
// d, requiring the MUTATE_DIRECTORY capability bit.
func (v *VFS) CreateDirectoryAt(d *Descriptor, path string) error {
	if !d.flags.Has(MutateDirectory) {
		return newErr(ErrReadOnly, path)
	}
	parsed, err := v.ParsePath(path)
	if err != nil {
		return err
	}
	parentPath, segment, err := splitParent(parsed)
	if err != nil {
		return err
	}
	parent, err := Traverse(v.root, d.node, parentPath)
	if err != nil {
		return err
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.kind != Directory {
		return newErr(ErrNotDirectory, path)
	}
	if _, exists := parent.children[segment]; exists {
		return newErr(ErrExist, path)
	}
	if err := v.inodes.Inc(1); err != nil {
		return err
	}
	if err := v.mem.Grow(int64(len(segment)) + handleCost); err != nil {
		v.inodes.Dec(1)
		return err
	}
	child := newDir(v.allocIno(), parent, segment)
	parent.children[segment] = child
	parent.order = append(parent.order, segment)
	return nil
}

// OpenFlags are the `open_flags` bits accepted by OpenAt.
type OpenFlags uint8

const (
	Create OpenFlags = 1 << iota
	DirectoryOnly
	Exclusive
	Truncate
)

func (f OpenFlags) has(bit OpenFlags) bool { return f&bit != 0 }

// OpenAt implements the open_at state table of this module: a POSIX-ish
// combination of existence, CREATE, DIRECTORY, EXCLUSIVE and TRUNCATE.
func (v *VFS) OpenAt(d *Descriptor, path string, open OpenFlags, desc Flags) (*Descriptor, error) {
	if path == "" {
		return nil, newErr(ErrInvalid, "empty path")
	}
	if open.has(Create) && open.has(DirectoryOnly) {
		return nil, newErr(ErrInvalid, "CREATE with DIRECTORY")
	}

	parsed, err := v.ParsePath(path)
	if err != nil {
		return nil, err
	}
	parentPath, segment, err := splitParent(parsed)
	if err != nil {
		return nil, err
	}
	parent, err := Traverse(v.root, d.node, parentPath)
	if err != nil {
		return nil, err
	}

	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.kind != Directory {
		return nil, newErr(ErrNotDirectory, path)
	}

	existing, exists := parent.children[segment]

	if exists && open.has(Create) && open.has(Exclusive) {
		return nil, newErr(ErrExist, path)
	}
	if exists && open.has(DirectoryOnly) && existing.Kind() != Directory {
		return nil, newErr(ErrNotDirectory, path)
	}
	if exists && open.has(Truncate) {
		existing.mu.Lock()
		if existing.kind == Directory {
			existing.mu.Unlock()
			return nil, newErr(ErrIsDirectory, path)
		}
		if desc.Has(Write) {
			released := int64(len(existing.data))
			existing.data = nil
			v.mem.Shrink(released)
		}
		existing.mu.Unlock()
	}

	if !exists {
		if !open.has(Create) {
			return nil, newErr(ErrNoEntry, path)
		}
		if !d.flags.Has(MutateDirectory) {
			return nil, newErr(ErrReadOnly, path)
		}
		if err := v.inodes.Inc(1); err != nil {
			return nil, err
		}
		if err := v.mem.Grow(int64(len(segment)) + handleCost); err != nil {
			v.inodes.Dec(1)
			return nil, err
		}
		existing = newFile(v.allocIno(), parent, segment, nil)
		parent.children[segment] = existing
		parent.order = append(parent.order, segment)
	}

	gen := v.nextGen.Add(1)
	return NewDescriptor(existing, desc, gen), nil
}
