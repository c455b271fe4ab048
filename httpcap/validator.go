// Package httpcap implements the outbound-HTTP capability validator
// of this module: a plug-point the component instance consults before
// any guest-initiated HTTP transport is allowed to proceed.
package httpcap

import "github.com/pkg/errors"

// Request names the three-tuple an outbound HTTP capability check is
// made against: method, host, and port. Port zero means "unspecified
// by the guest" and is resolved to the TLS-appropriate default before
// the membership test runs.
type Request struct {
	Method string
	Host   string
	Port   int
}

// ErrRejected is the error every Validator returns for a disallowed
// request; it carries no detail beyond kind, matching the
// plain `Err(Rejected)`.
var ErrRejected = errors.New("http capability rejected")

// Validator decides per-request allow/deny.
type Validator interface {
	Validate(req Request, useTLS bool) error
}

// RejectAll denies every request; it is the default validator when no
// HTTP capability has been granted.
type RejectAll struct{}

func (RejectAll) Validate(Request, bool) error { return ErrRejected }

// Entry is one allow-set member. Port zero is not a wildcard here —
// every Request's port is resolved to a concrete default before the
// membership test, so Entry.Port must also be the concrete port.
type Entry struct {
	Method string
	Host   string
	Port   int
}

// AllowSet validates by exact membership of the resolved
// {method, host, port} tuple in an explicit allow-list.
type AllowSet struct {
	allowed map[Entry]struct{}
}

// NewAllowSet builds an AllowSet from the given entries.
func NewAllowSet(entries ...Entry) *AllowSet {
	s := &AllowSet{allowed: make(map[Entry]struct{}, len(entries))}
	for _, e := range entries {
		s.allowed[e] = struct{}{}
	}
	return s
}

// Validate resolves req's default port (443 under TLS, 80 otherwise)
// when unspecified, rejects a request with no host, and otherwise
// tests membership in the allow-set.
func (s *AllowSet) Validate(req Request, useTLS bool) error {
	if req.Host == "" {
		return ErrRejected
	}
	port := req.Port
	if port == 0 {
		if useTLS {
			port = 443
		} else {
			port = 80
		}
	}
	key := Entry{Method: req.Method, Host: req.Host, Port: port}
	if _, ok := s.allowed[key]; ok {
		return nil
	}
	return ErrRejected
}
