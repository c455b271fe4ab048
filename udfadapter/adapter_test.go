package udfadapter

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow/go/arrow"
	"github.com/apache/arrow/go/arrow/array"
	"github.com/apache/arrow/go/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/wasmudf/sandbox-host/capconfig"
	"github.com/wasmudf/sandbox-host/component"
	"github.com/wasmudf/sandbox-host/datalimits"
	"github.com/wasmudf/sandbox-host/internal/guesttest"
	"github.com/wasmudf/sandbox-host/limiter"
	"github.com/wasmudf/sandbox-host/rescache"
	"github.com/wasmudf/sandbox-host/vfs"
)

// emptyModule is the smallest valid WebAssembly binary: the magic
// number and version, with no sections, no exports.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

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

func newTestUDF(t *testing.T, multiThreaded bool) (*ScalarUDF, *component.Instance) {
	t.Helper()
	ctx := context.Background()
	perm := testPermissions()
	pre, err := component.Compile(ctx, emptyModule, component.CompilationFlags{})
	require.NoError(t, err)
	inst, err := component.NewInstance(ctx, pre, perm, &limiter.UnboundedPool{}, "def f(x): return x")
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close(ctx) })

	desc := Descriptor{
		Name: "identity",
		Signature: Signature{
			TypeSignature: TypeSignature{Kind: SigExact, Types: []arrow.DataType{arrow.PrimitiveTypes.Int64}},
			Volatility:    Immutable,
		},
		InvokeExport:     "udf_identity_invoke",
		ReturnTypeExport: "udf_identity_return_type",
	}
	return New(inst, desc, perm.MaxCachedFields, perm.MaxCachedConfigOptions, multiThreaded, perm.TrustedDataLimits), inst
}

func TestScalarUDFNameAndSignature(t *testing.T) {
	u, _ := newTestUDF(t, true)
	require.Equal(t, "identity", u.Name())
	require.Equal(t, SigExact, u.Signature().TypeSignature.Kind)
}

func TestScalarUDFInvokeWithArgsAlwaysUnsupported(t *testing.T) {
	u, _ := newTestUDF(t, true)
	_, err := u.InvokeWithArgs(context.Background(), nil, nil, nil, nil)
	require.Equal(t, ErrSyncInvokeNotSupported, err)
}

func TestScalarUDFReturnTypeRejectsSingleThreaded(t *testing.T) {
	u, _ := newTestUDF(t, false)
	_, err := u.ReturnType(context.Background(), []arrow.DataType{arrow.PrimitiveTypes.Int64})
	require.Equal(t, ErrInPlaceBlockingSingleThreaded, err)
}

func TestScalarUDFReturnTypeFailsWithoutGuestExport(t *testing.T) {
	// emptyModule declares no exports at all, so a multi-threaded call
	// still fails, but past the single-threaded gate and on the
	// missing-export path instead.
	u, _ := newTestUDF(t, true)
	_, err := u.ReturnType(context.Background(), []arrow.DataType{arrow.PrimitiveTypes.Int64})
	require.Error(t, err)
	require.NotEqual(t, ErrInPlaceBlockingSingleThreaded, err)
}

// newRealGuestUDF builds a ScalarUDF bound to the hand-assembled
// guesttest fixture instead of the zero-export emptyModule, so the
// golden path of InvokeAsyncWithArgs/ReturnType actually runs through
// a real guest invoke/return_type export.
func newRealGuestUDF(t *testing.T, multiThreaded bool) (*ScalarUDF, *guesttest.Fixture) {
	t.Helper()
	ctx := context.Background()
	perm := testPermissions()
	fx, err := guesttest.Build()
	require.NoError(t, err)

	pre, err := component.Compile(ctx, fx.Module, component.CompilationFlags{})
	require.NoError(t, err)
	inst, err := component.NewInstance(ctx, pre, perm, &limiter.UnboundedPool{}, "")
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close(ctx) })

	desc := Descriptor{
		Name: fx.UDFName,
		Signature: Signature{
			TypeSignature: TypeSignature{Kind: SigExact, Types: []arrow.DataType{fx.ArgType}},
			Volatility:    Immutable,
		},
		InvokeExport:     fx.InvokeExport,
		ReturnTypeExport: fx.ReturnTypeExport,
	}
	return New(inst, desc, perm.MaxCachedFields, perm.MaxCachedConfigOptions, multiThreaded, perm.TrustedDataLimits), fx
}

func TestScalarUDFInvokeAsyncWithArgsRealGuest(t *testing.T) {
	u, fx := newRealGuestUDF(t, true)

	argField := rescache.NewRef(arrow.Field{Name: "x", Type: fx.ArgType})
	retField := rescache.NewRef(arrow.Field{Name: "result", Type: fx.ArgType})
	cfg := rescache.NewRef(ConfigOptions{})

	bldr := array.NewInt64Builder(memory.NewGoAllocator())
	bldr.Append(7)
	argArr := bldr.NewArray()
	bldr.Release()
	defer argArr.Release()

	result, err := u.InvokeAsyncWithArgs(context.Background(),
		[]*rescache.Ref[arrow.Field]{argField}, []arrow.Array{argArr}, retField, cfg)
	require.NoError(t, err)
	defer result.Release()

	require.Equal(t, 1, result.Len())
	i64Result, ok := result.(*array.Int64)
	require.True(t, ok)
	require.Equal(t, fx.ExpectedInvokeValue, i64Result.Value(0))
}

func TestScalarUDFReturnTypeRealGuest(t *testing.T) {
	u, fx := newRealGuestUDF(t, true)

	dt, err := u.ReturnType(context.Background(), []arrow.DataType{fx.ArgType})
	require.NoError(t, err)
	require.Equal(t, fx.ArgType.ID(), dt.ID())
}
