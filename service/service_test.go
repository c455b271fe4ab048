package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmudf/sandbox-host/capconfig"
	"github.com/wasmudf/sandbox-host/component"
	"github.com/wasmudf/sandbox-host/internal/guesttest"
)

// emptyModule is the smallest valid WebAssembly binary: the magic
// number and version, with no sections, no exports.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestNewBuildsInstancePoolAndCloses(t *testing.T) {
	ctx := context.Background()
	pre, err := component.Compile(ctx, emptyModule, component.CompilationFlags{})
	require.NoError(t, err)

	h, err := New(ctx, t.TempDir(), &capconfig.File{}, pre, WithInstancePoolSize(3))
	require.NoError(t, err)
	require.Len(t, h.instances, 3)
	require.NoError(t, h.Close(ctx))
}

func TestAdaptersWithNoUDFsExportReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	pre, err := component.Compile(ctx, emptyModule, component.CompilationFlags{})
	require.NoError(t, err)

	h, err := New(ctx, t.TempDir(), &capconfig.File{}, pre)
	require.NoError(t, err)
	defer h.Close(ctx)

	adapters, err := h.Adapters(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, adapters)
}

func TestAdaptersRejectsUnknownRequestedName(t *testing.T) {
	ctx := context.Background()
	pre, err := component.Compile(ctx, emptyModule, component.CompilationFlags{})
	require.NoError(t, err)

	h, err := New(ctx, t.TempDir(), &capconfig.File{}, pre)
	require.NoError(t, err)
	defer h.Close(ctx)

	_, err = h.Adapters(ctx, []string{"does_not_exist"})
	require.Error(t, err)
}

func TestSupported(t *testing.T) {
	require.NoError(t, Supported(context.Background()))
}

// TestAdaptersBindsRealGuestUDF exercises Host.Adapters against a
// real udfs()-declaring guest instead of only the no-export case,
// confirming discovery and binding reach an actual component instance
// from the pool.
func TestAdaptersBindsRealGuestUDF(t *testing.T) {
	ctx := context.Background()
	fx, err := guesttest.Build()
	require.NoError(t, err)

	pre, err := component.Compile(ctx, fx.Module, component.CompilationFlags{})
	require.NoError(t, err)

	h, err := New(ctx, t.TempDir(), &capconfig.File{}, pre, WithInstancePoolSize(2))
	require.NoError(t, err)
	defer h.Close(ctx)

	adapters, err := h.Adapters(ctx, nil)
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	require.Equal(t, fx.UDFName, adapters[0].Name())

	_, err = h.Adapters(ctx, []string{fx.UDFName})
	require.NoError(t, err)
}
