package vfs

import "github.com/pkg/errors"

// ErrorKind enumerates the POSIX-flavored failure modes the VFS's
// guest-visible surface can return.
type ErrorKind int

const (
	ErrNoEntry ErrorKind = iota
	ErrNotDirectory
	ErrIsDirectory
	ErrExist
	ErrInvalid
	ErrReadOnly
	ErrUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNoEntry:
		return "no entry"
	case ErrNotDirectory:
		return "not a directory"
	case ErrIsDirectory:
		return "is a directory"
	case ErrExist:
		return "already exists"
	case ErrInvalid:
		return "invalid argument"
	case ErrReadOnly:
		return "read-only filesystem"
	case ErrUnsupported:
		return "unsupported operation"
	default:
		return "unknown vfs error"
	}
}

// Error wraps an ErrorKind with the path or operation that triggered
// it, so host logs can show e.g. "no entry: /foo/bar".
type Error struct {
	Kind ErrorKind
	Op   string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Kind.String()
	}
	return errors.Errorf("%s: %s", e.Kind, e.Op).Error()
}

func newErr(kind ErrorKind, op string) error { return &Error{Kind: kind, Op: op} }

// IsKind reports whether err is a *Error of the given kind, unwrapping
// as errors.As would.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
