package udfadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/apache/arrow/go/arrow"

	"github.com/wasmudf/sandbox-host/component"
	"github.com/wasmudf/sandbox-host/wire"
)

// wireTypeSignature and wireSignature are the JSON shape the
// "udfs(source) -> list of scalar-UDF descriptors" hook returns on the
// wire: each Arrow DataType travels as base64'd IPC schema bytes (the
// same `wire.EncodeDataType` encoding everything else in this package
// uses), wrapped in an otherwise ordinary JSON document — there being
// no retrieved pack source defining a guest UDF-discovery protocol to
// adapt instead (see DESIGN.md).
type wireTypeSignature struct {
	Kind  TypeSignatureKind `json:"kind"`
	N     int               `json:"n"`
	Types []string          `json:"types"` // base64 IPC schema bytes, one per type
}

type wireSignature struct {
	TypeSignature  wireTypeSignature `json:"type_signature"`
	Volatility     Volatility        `json:"volatility"`
	ParameterNames []string          `json:"parameter_names,omitempty"`
}

type wireDescriptor struct {
	Name             string        `json:"name"`
	Signature        wireSignature `json:"signature"`
	InvokeExport     string        `json:"invoke_export"`
	ReturnTypeExport string        `json:"return_type_export,omitempty"`
}

// Discover calls the guest's "udfs" export (source is not passed as an
// argument here: the guest already pulled it at link time via the
// source_len/source_read host functions) and decodes the descriptor
// list it returns. A guest with no "udfs" export declares zero UDFs.
func Discover(ctx context.Context, inst *component.Instance) ([]Descriptor, error) {
	fn := inst.ExportedFunction("udfs")
	if fn == nil {
		return nil, nil
	}
	results, err := fn.Call(ctx)
	if err != nil {
		return nil, newErr(KindInternal, "udfs() trapped: %v", err)
	}
	ptr, size := uint32(results[0]>>32), uint32(results[0])
	if size == 0 {
		return nil, nil
	}
	data, ok := inst.Memory().Read(ptr, size)
	if !ok {
		return nil, newErr(KindInternal, "udfs() returned an out-of-bounds buffer")
	}
	return decodeDescriptors(data)
}

func decodeDescriptors(data []byte) ([]Descriptor, error) {
	var wds []wireDescriptor
	if err := json.Unmarshal(data, &wds); err != nil {
		return nil, newErr(KindInternal, "decode udfs() result: %v", err)
	}
	out := make([]Descriptor, 0, len(wds))
	for _, wd := range wds {
		types := make([]arrow.DataType, 0, len(wd.Signature.TypeSignature.Types))
		for _, b64 := range wd.Signature.TypeSignature.Types {
			raw, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				return nil, newErr(KindInternal, "decode udfs() type: %v", err)
			}
			dt, err := wire.DecodeDataType(raw)
			if err != nil {
				return nil, newErr(KindInternal, "decode udfs() type: %v", err)
			}
			types = append(types, dt)
		}
		out = append(out, Descriptor{
			Name: wd.Name,
			Signature: Signature{
				TypeSignature: TypeSignature{
					Kind:  wd.Signature.TypeSignature.Kind,
					N:     wd.Signature.TypeSignature.N,
					Types: types,
				},
				Volatility:     wd.Signature.Volatility,
				ParameterNames: wd.Signature.ParameterNames,
			},
			InvokeExport:     wd.InvokeExport,
			ReturnTypeExport: wd.ReturnTypeExport,
		})
	}
	return out, nil
}
