package component

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wasmudf/sandbox-host/capconfig"
	"github.com/wasmudf/sandbox-host/datalimits"
	"github.com/wasmudf/sandbox-host/internal/guesttest"
	"github.com/wasmudf/sandbox-host/limiter"
	"github.com/wasmudf/sandbox-host/vfs"
)

func testPermissions() capconfig.Permissions {
	return capconfig.Permissions{
		EpochTickTime:           time.Millisecond,
		InplaceBlockingMaxTicks: 100,
		TrustedDataLimits:       datalimits.Limits{MaxIdentifierLength: 64, MaxAuxStringLength: 256, MaxDepth: 16, MaxComplexity: 256},
		VFS:                     vfs.Limits{Inodes: 1000, Bytes: 1 << 20, MaxPathLength: 255, MaxPathSegmentSize: 64},
		MaxCachedFields:         16,
		MaxCachedConfigOptions:  16,
	}
}

func TestNewInstanceConstructsAndCloses(t *testing.T) {
	ctx := context.Background()
	pre, err := Compile(ctx, emptyModule, CompilationFlags{})
	require.NoError(t, err)

	inst, err := NewInstance(ctx, pre, testPermissions(), &limiter.UnboundedPool{}, "def f(): pass")
	require.NoError(t, err)
	require.False(t, inst.Poisoned())
	require.NoError(t, inst.Close(ctx))
}

func TestInstanceGuestSourceRoundTrip(t *testing.T) {
	ctx := context.Background()
	pre, err := Compile(ctx, emptyModule, CompilationFlags{})
	require.NoError(t, err)

	inst, err := NewInstance(ctx, pre, testPermissions(), &limiter.UnboundedPool{}, "source-marker")
	require.NoError(t, err)
	defer inst.Close(ctx)

	require.Equal(t, "source-marker", inst.state.source)
}

func newRealGuestInstance(t *testing.T) (*Instance, *guesttest.Fixture) {
	t.Helper()
	ctx := context.Background()
	fx, err := guesttest.Build()
	require.NoError(t, err)

	pre, err := Compile(ctx, fx.Module, CompilationFlags{})
	require.NoError(t, err)

	inst, err := NewInstance(ctx, pre, testPermissions(), &limiter.UnboundedPool{}, "")
	require.NoError(t, err)
	return inst, fx
}

// TestPopulateRootFSFromRealGuest exercises populateRootFS against a
// real root_fs_tar() export carrying a real TAR image, rather than
// never running it at all.
func TestPopulateRootFSFromRealGuest(t *testing.T) {
	inst, fx := newRealGuestInstance(t)
	defer inst.Close(context.Background())

	root, ok := inst.state.descriptors.get(0)
	require.True(t, ok)

	_, _, err := inst.state.vfs.Read(root, 0, 0)
	require.Error(t, err, "root is a directory; Read must reject it")

	file, err := inst.state.vfs.OpenAt(root, fx.RootFSPath, 0, vfs.Read)
	require.NoError(t, err)
	contents, _, err := inst.state.vfs.Read(file, len(fx.RootFSContents)+1, 0)
	require.NoError(t, err)
	require.Equal(t, fx.RootFSContents, contents)
}

// TestRealGuestExportsResolve confirms ExportedFunction/Memory reach a
// real compiled guest rather than only the zero-export emptyModule.
func TestRealGuestExportsResolve(t *testing.T) {
	inst, fx := newRealGuestInstance(t)
	defer inst.Close(context.Background())

	require.NotNil(t, inst.ExportedFunction("udfs"))
	require.NotNil(t, inst.ExportedFunction(fx.InvokeExport))
	require.NotNil(t, inst.ExportedFunction(fx.ReturnTypeExport))
	require.NotNil(t, inst.ExportedFunction(fx.TrapExport))
	require.NotNil(t, inst.ExportedFunction(fx.LoopExport))
	require.NotNil(t, inst.Memory())
}

// TestRealGuestTrapPoisonsInstance drives an actual guest trap (a real
// integer divide-by-zero) through Enter/fn.Call and confirms it
// poisons the instance end to end, not just entryGate in isolation.
func TestRealGuestTrapPoisonsInstance(t *testing.T) {
	ctx := context.Background()
	inst, fx := newRealGuestInstance(t)
	defer inst.Close(ctx)

	exit, err := inst.Enter()
	require.NoError(t, err)
	_, callErr := inst.ExportedFunction(fx.TrapExport).Call(ctx)
	trapped := callErr != nil
	require.True(t, trapped)
	exit(trapped)

	require.True(t, inst.Poisoned())
	_, err = inst.Enter()
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot enter component instance")
}

// TestRealGuestPreemptionLiveness calls a real non-terminating guest
// export under a short-lived context and confirms the call returns
// (trapped by the context-done interruption wazero's
// WithCloseOnContextDone wires up) instead of hanging forever.
func TestRealGuestPreemptionLiveness(t *testing.T) {
	inst, fx := newRealGuestInstance(t)
	defer inst.Close(context.Background())

	exit, err := inst.Enter()
	require.NoError(t, err)
	defer func() { exit(true) }()

	callCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, callErr := inst.ExportedFunction(fx.LoopExport).Call(callCtx)
		done <- callErr
	}()

	select {
	case callErr := <-done:
		require.Error(t, callErr, "a non-terminating call must be interrupted, not return cleanly")
	case <-time.After(5 * time.Second):
		t.Fatal("loop_forever was not interrupted by the done context within the test's liveness budget")
	}
}
