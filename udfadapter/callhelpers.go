package udfadapter

import (
	"context"
	"encoding/json"

	"github.com/apache/arrow/go/arrow"

	"github.com/wasmudf/sandbox-host/component"
	"github.com/wasmudf/sandbox-host/wire"
)

// writeGuestBytes copies data into guest memory via the guest's own
// "allocate"/"deallocate" exports, the standard convention for passing
// host-owned buffers across a WebAssembly boundary. The caller owns
// releasing the returned pointer once the callee has consumed it.
func writeGuestBytes(ctx context.Context, inst *component.Instance, data []byte) (ptr uint32, size uint32, err error) {
	allocate := inst.ExportedFunction("allocate")
	if allocate == nil {
		return 0, 0, newErr(KindInternal, "guest component does not export allocate")
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, 0, newErr(KindInternal, "guest allocate trapped: %v", err)
	}
	p := uint32(results[0])
	if !inst.Memory().Write(p, data) {
		return 0, 0, newErr(KindInternal, "guest allocate returned an out-of-bounds buffer")
	}
	return p, uint32(len(data)), nil
}

func freeGuestBytes(ctx context.Context, inst *component.Instance, ptr, size uint32) {
	deallocate := inst.ExportedFunction("deallocate")
	if deallocate == nil {
		return
	}
	_, _ = deallocate.Call(ctx, uint64(ptr), uint64(size))
}

func callWithBytesArg(ctx context.Context, inst *component.Instance, fn interface {
	Call(context.Context, ...uint64) ([]uint64, error)
}, data []byte) (uint32, error) {
	ptr, size, err := writeGuestBytes(ctx, inst, data)
	if err != nil {
		return 0, err
	}
	defer freeGuestBytes(ctx, inst, ptr, size)
	results, err := fn.Call(ctx, uint64(ptr), uint64(size))
	if err != nil {
		return 0, err
	}
	return uint32(results[0]), nil
}

func encodeFieldType(dt arrow.DataType) ([]byte, error) {
	return wire.EncodeDataType(dt)
}

func callConfigNew(inst *component.Instance, fn interface {
	Call(context.Context, ...uint64) ([]uint64, error)
}, values map[string]string) (uint32, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return 0, err
	}
	return callWithBytesArg(context.Background(), inst, fn, data)
}
