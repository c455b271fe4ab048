package udfadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/apache/arrow/go/arrow"
	"github.com/stretchr/testify/require"

	"github.com/wasmudf/sandbox-host/component"
	"github.com/wasmudf/sandbox-host/internal/guesttest"
	"github.com/wasmudf/sandbox-host/limiter"
	"github.com/wasmudf/sandbox-host/wire"
)

func TestDiscoverNoExportReturnsEmpty(t *testing.T) {
	_, inst := newTestUDF(t, true)
	descs, err := Discover(context.Background(), inst)
	require.NoError(t, err)
	require.Empty(t, descs)
}

// TestDiscoverRealGuestUDFsExport calls a real udfs() export (rather
// than only ever exercising decodeDescriptors against a hand-built
// payload), confirming Discover's own guest-call and memory-read path
// works end to end.
func TestDiscoverRealGuestUDFsExport(t *testing.T) {
	ctx := context.Background()
	fx, err := guesttest.Build()
	require.NoError(t, err)

	pre, err := component.Compile(ctx, fx.Module, component.CompilationFlags{})
	require.NoError(t, err)
	inst, err := component.NewInstance(ctx, pre, testPermissions(), &limiter.UnboundedPool{}, "")
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close(ctx) })

	descs, err := Discover(ctx, inst)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	require.Equal(t, fx.UDFName, descs[0].Name)
	require.Equal(t, fx.InvokeExport, descs[0].InvokeExport)
	require.Equal(t, fx.ReturnTypeExport, descs[0].ReturnTypeExport)
	require.True(t, arrow.TypeEqual(fx.ArgType, descs[0].Signature.TypeSignature.Types[0]))
}

func TestDecodeDescriptorsRoundTrip(t *testing.T) {
	typeBytes, err := wire.EncodeDataType(arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)

	payload, err := json.Marshal([]wireDescriptor{
		{
			Name: "double_it",
			Signature: wireSignature{
				TypeSignature: wireTypeSignature{
					Kind:  SigExact,
					Types: []string{base64.StdEncoding.EncodeToString(typeBytes)},
				},
				Volatility: Immutable,
			},
			InvokeExport:     "udf_double_it_invoke",
			ReturnTypeExport: "",
		},
	})
	require.NoError(t, err)

	descs, err := decodeDescriptors(payload)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	require.Equal(t, "double_it", descs[0].Name)
	require.Equal(t, "udf_double_it_invoke", descs[0].InvokeExport)
	require.Equal(t, SigExact, descs[0].Signature.TypeSignature.Kind)
	require.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, descs[0].Signature.TypeSignature.Types[0]))
}

func TestDecodeDescriptorsRejectsMalformedJSON(t *testing.T) {
	_, err := decodeDescriptors([]byte("not json"))
	require.Error(t, err)
}
