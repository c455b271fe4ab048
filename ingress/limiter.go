package ingress

import "github.com/wasmudf/sandbox-host/datalimits"

// Limiter adapts a datalimits.Token into ingress's own Error kind
// (ResourcesExhausted), so the rest of this package only ever deals in
// *Error.
type Limiter struct {
	tok *datalimits.Token
}

// Root starts a new ingress conversion with lim as its budget.
func Root(lim datalimits.Limits) *Limiter {
	return &Limiter{tok: datalimits.Root(lim)}
}

// Sub derives a child limiter for one recursive structural step.
func (l *Limiter) Sub() (*Limiter, error) {
	sub, err := l.tok.Sub()
	if err != nil {
		return nil, wrapExhausted(err)
	}
	return &Limiter{tok: sub}, nil
}

// NoRecursion marks a terminal leaf conversion
func (l *Limiter) NoRecursion() { l.tok.NoRecursion() }

// CheckIdentifier validates a guest-chosen identifier (e.g. a field
// name) against the identifier-length budget.
func (l *Limiter) CheckIdentifier(s string) error {
	if err := l.tok.CheckIdentifier(s); err != nil {
		return wrapExhausted(err)
	}
	return nil
}

// CheckAuxString validates a free-form guest string (e.g. an error
// message or metadata value) against the aux-string-length budget.
func (l *Limiter) CheckAuxString(s string) error {
	if err := l.tok.CheckAuxString(s); err != nil {
		return wrapExhausted(err)
	}
	return nil
}

func wrapExhausted(err error) *Error {
	ee, ok := err.(*datalimits.ExhaustedError)
	if !ok {
		return newErr(KindInternal, "%v", err)
	}
	return newErr(KindResourcesExhausted, "resources exhausted: %s: limit=%d", ee.Tag, ee.Limit)
}
