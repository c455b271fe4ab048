package udfadapter

import "fmt"

// StderrTailBytes bounds how much captured guest stderr is attached to
// the first host-visible error produced during a guest call.
const StderrTailBytes = 4096

// Kind is the subset of the taxonomy this package itself raises
// (NotImplemented for the unsupported sync path, Internal for host
// invariant violations such as a malformed return value).
type Kind int

const (
	KindNotImplemented Kind = iota
	KindInternal
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrInPlaceBlockingSingleThreaded is the exact diagnostic this module
// requires when ReturnType is called on a single-threaded runtime.
var ErrInPlaceBlockingSingleThreaded = newErr(KindNotImplemented, "in-place blocking only works for multi-thread runtimes")

// ErrSyncInvokeNotSupported is InvokeWithArgs's fixed failure: the
// synchronous variant is defined to always fail "not supported".
var ErrSyncInvokeNotSupported = newErr(KindNotImplemented, "not supported")

// guestCallError wraps the first host-visible error raised during a
// guest call with the captured stderr tail at the time of failure, so
// a failing UDF's own diagnostics reach the caller alongside the host
// error.
type guestCallError struct {
	cause  error
	stderr []byte
}

func (e *guestCallError) Error() string {
	if len(e.stderr) == 0 {
		return e.cause.Error()
	}
	return fmt.Sprintf("%s\nguest stderr:\n%s", e.cause.Error(), e.stderr)
}

func (e *guestCallError) Unwrap() error { return e.cause }

// stderrSource is satisfied by component.Instance; declared locally so
// this package does not need to import component just for the type of
// a one-method helper.
type stderrSource interface {
	StderrTail(maxBytes int) []byte
}

// withStderr attaches inst's captured stderr tail to a non-nil error
// produced during a guest call. A nil err, or an instance with nothing
// captured, passes through unchanged.
func withStderr(inst stderrSource, err error) error {
	if err == nil {
		return nil
	}
	tail := inst.StderrTail(StderrTailBytes)
	if len(tail) == 0 {
		return err
	}
	return &guestCallError{cause: err, stderr: tail}
}
