package rescache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stringVal struct {
	s       string
	cleaned int
}

func (v *stringVal) Clean(ctx *int) error {
	v.cleaned++
	*ctx++
	return nil
}

func newStringCache(max int) *Cache[string, *stringVal, *int] {
	return New[string, *stringVal, *int](max, func(k *Ref[string], ctx *int) (*stringVal, error) {
		return &stringVal{s: *k.Get()}, nil
	})
}

func TestS6LRUEviction(t *testing.T) {
	// Scenario S6: cache of size 2; access keys (A, B, A, C) in order;
	// the key evicted is B.
	c := newStringCache(2)
	var cleanups int
	a, b := NewRef("A"), NewRef("B")
	_, err := c.Cache(a, &cleanups)
	require.NoError(t, err)
	_, err = c.Cache(b, &cleanups)
	require.NoError(t, err)
	_, err = c.Cache(a, &cleanups) // bump A to most-recently-used
	require.NoError(t, err)

	before := cleanups
	_, err = c.Cache(NewRef("C"), &cleanups) // evicts B
	require.NoError(t, err)
	require.Equal(t, before+1, cleanups, "exactly one eviction cleanup ran")
	require.Equal(t, 2, c.Len())
}

func TestCacheIdentityDistinctAddresses(t *testing.T) {
	c := newStringCache(10)
	var cleanups int
	r1 := NewRef("same")
	r2 := NewRef("same")
	v1, err := c.Cache(r1, &cleanups)
	require.NoError(t, err)
	v2, err := c.Cache(r2, &cleanups)
	require.NoError(t, err)
	require.NotSame(t, v1, v2, "equal-content keys at distinct addresses cache distinct values")
}

func TestCleanOnDrop(t *testing.T) {
	c := newStringCache(10)
	var cleanups int
	r := NewRef("x")
	v, err := c.Cache(r, &cleanups)
	require.NoError(t, err)
	r.Release() // strong count -> 0
	require.NoError(t, c.Clean(&cleanups))
	require.Equal(t, 1, v.cleaned)
	require.Equal(t, 0, c.Len())

	// a second Clean is a no-op: the entry is already gone.
	require.NoError(t, c.Clean(&cleanups))
	require.Equal(t, 1, v.cleaned)
}

func TestCacheHitDoesNotReconstruct(t *testing.T) {
	var builds int
	c := New[string, *stringVal, *int](10, func(k *Ref[string], ctx *int) (*stringVal, error) {
		builds++
		return &stringVal{s: *k.Get()}, nil
	})
	var ctx int
	r := NewRef("k")
	_, _ = c.Cache(r, &ctx)
	_, _ = c.Cache(r, &ctx)
	_, _ = c.Cache(r, &ctx)
	require.Equal(t, 1, builds)
}
