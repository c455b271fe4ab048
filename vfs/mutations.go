package vfs

// The operations below are the VFS's "small write surface" complement:
// every other mutating call the guest ABI exposes is rejected outright
// regardless of descriptor flags, since the filesystem is read-only.
// Symlinks are Unsupported since this VFS never contains one; everything
// else that would mutate existing data is ReadOnly.

func (v *VFS) Write(d *Descriptor, data []byte, offset int64) (int, error) {
	return 0, newErr(ErrReadOnly, "write")
}

func (v *VFS) WriteViaStream(d *Descriptor, offset int64) error { return newErr(ErrReadOnly, "write_via_stream") }

func (v *VFS) AppendViaStream(d *Descriptor) error { return newErr(ErrReadOnly, "append_via_stream") }

func (v *VFS) RenameAt(d *Descriptor, oldPath string, newDir *Descriptor, newPath string) error {
	return newErr(ErrReadOnly, "rename_at")
}

func (v *VFS) UnlinkFileAt(d *Descriptor, path string) error { return newErr(ErrReadOnly, "unlink_file_at") }

func (v *VFS) RemoveDirectoryAt(d *Descriptor, path string) error {
	return newErr(ErrReadOnly, "remove_directory_at")
}

func (v *VFS) SymlinkAt(d *Descriptor, oldPath, newPath string) error {
	return newErr(ErrUnsupported, "symlink_at")
}

func (v *VFS) LinkAt(d *Descriptor, oldPath string, newDir *Descriptor, newPath string) error {
	return newErr(ErrReadOnly, "link_at")
}

func (v *VFS) ReadlinkAt(d *Descriptor, path string) (string, error) {
	return "", newErr(ErrUnsupported, "readlink_at")
}

func (v *VFS) SetTimes(d *Descriptor, atime, mtime *uint64) error { return newErr(ErrReadOnly, "set_times") }

func (v *VFS) SetTimesAt(d *Descriptor, path string, atime, mtime *uint64) error {
	return newErr(ErrReadOnly, "set_times_at")
}

func (v *VFS) SetSize(d *Descriptor, size uint64) error { return newErr(ErrReadOnly, "set_size") }
