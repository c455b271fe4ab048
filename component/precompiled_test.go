package component

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmudf/sandbox-host/internal/guesttest"
)

// emptyModule is the smallest valid WebAssembly binary: the magic
// number and version, with no sections.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestCompileRejectsMalformedBytes(t *testing.T) {
	_, err := Compile(context.Background(), []byte("not wasm"), CompilationFlags{})
	require.Error(t, err)
}

func TestCompileStoreLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, err := Compile(ctx, emptyModule, CompilationFlags{})
	require.NoError(t, err)
	require.Equal(t, hostTarget(), p.target)

	blob := p.Store()
	loaded, err := Load(ctx, blob)
	require.NoError(t, err)
	require.Equal(t, p.target, loaded.target)
	require.Equal(t, p.digest, loaded.digest)
}

func TestLoadRejectsTamperedBytes(t *testing.T) {
	ctx := context.Background()
	p, err := Compile(ctx, emptyModule, CompilationFlags{})
	require.NoError(t, err)
	blob := p.Store()
	blob[len(blob)-1] ^= 0xff // flip the last wasm byte

	_, err = Load(ctx, blob)
	require.Error(t, err)
	require.Contains(t, err.Error(), "digest mismatch")
}

func TestLoadRejectsForeignTarget(t *testing.T) {
	ctx := context.Background()
	foreign := "plan9/386"
	p, err := Compile(ctx, emptyModule, CompilationFlags{Target: &foreign})
	require.NoError(t, err)

	_, err = Load(ctx, p.Store())
	require.Error(t, err)
	require.Contains(t, err.Error(), "host is")
}

func TestLoadRejectsTruncatedBlob(t *testing.T) {
	_, err := Load(context.Background(), []byte{0x00, 0x01})
	require.Error(t, err)
}

// TestCompileStoreLoadRealGuest runs Compile/Store/Load
// against a real multi-export guest rather than the zero-export
// emptyModule, and Loads it twice against the shared
// compilationCache — the second Load is the cache hit that makes
// rehydration cheaper than a cold Compile.
func TestCompileStoreLoadRealGuest(t *testing.T) {
	ctx := context.Background()
	fx, err := guesttest.Build()
	require.NoError(t, err)

	p, err := Compile(ctx, fx.Module, CompilationFlags{})
	require.NoError(t, err)

	blob := p.Store()
	first, err := Load(ctx, blob)
	require.NoError(t, err)
	require.Equal(t, p.digest, first.digest)

	second, err := Load(ctx, blob)
	require.NoError(t, err)
	require.Equal(t, p.digest, second.digest)
}
