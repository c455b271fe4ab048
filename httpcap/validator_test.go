package httpcap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRejectAllRejectsEverything(t *testing.T) {
	var v RejectAll
	require.ErrorIs(t, v.Validate(Request{Method: "GET", Host: "example.com"}, true), ErrRejected)
}

func TestAllowSetDefaultPortTLS(t *testing.T) {
	v := NewAllowSet(Entry{Method: "GET", Host: "example.com", Port: 443})
	require.NoError(t, v.Validate(Request{Method: "GET", Host: "example.com"}, true))
}

func TestAllowSetDefaultPortPlain(t *testing.T) {
	v := NewAllowSet(Entry{Method: "GET", Host: "example.com", Port: 80})
	require.NoError(t, v.Validate(Request{Method: "GET", Host: "example.com"}, false))
}

func TestAllowSetMissingHostRejects(t *testing.T) {
	v := NewAllowSet(Entry{Method: "GET", Host: "example.com", Port: 443})
	require.ErrorIs(t, v.Validate(Request{Method: "GET"}, true), ErrRejected)
}

func TestAllowSetNotMemberRejects(t *testing.T) {
	v := NewAllowSet(Entry{Method: "GET", Host: "example.com", Port: 443})
	require.ErrorIs(t, v.Validate(Request{Method: "POST", Host: "example.com", Port: 443}, true), ErrRejected)
}

func TestAllowSetExplicitPortOverridesDefault(t *testing.T) {
	v := NewAllowSet(Entry{Method: "GET", Host: "example.com", Port: 8443})
	require.ErrorIs(t, v.Validate(Request{Method: "GET", Host: "example.com", Port: 443}, true), ErrRejected)
	require.NoError(t, v.Validate(Request{Method: "GET", Host: "example.com", Port: 8443}, true))
}
