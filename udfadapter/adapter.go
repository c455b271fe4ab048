package udfadapter

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/apache/arrow/go/arrow"

	"github.com/wasmudf/sandbox-host/component"
	"github.com/wasmudf/sandbox-host/datalimits"
	"github.com/wasmudf/sandbox-host/ingress"
	"github.com/wasmudf/sandbox-host/rescache"
	"github.com/wasmudf/sandbox-host/wire"
)

// Descriptor is one guest-declared scalar UDF, as returned by the
// guest's udfs(source) hook.
type Descriptor struct {
	Name             string
	Signature        Signature
	InvokeExport     string
	ReturnTypeExport string // empty if the guest has no dynamic return_type
}

// ScalarUDF is the adapter: it exposes a single guest-declared
// UDF as an engine-visible async scalar function, routing every call
// through its component.Instance under that instance's store-mutex.
type ScalarUDF struct {
	desc          Descriptor
	instance      *component.Instance
	multiThreaded bool

	fields  *fieldCache
	configs *configCache

	dataLimits datalimits.Limits
}

// New constructs a ScalarUDF bound to inst. multiThreaded reports
// whether the calling executor is a multi-thread runtime, gating
// ReturnType
func New(inst *component.Instance, desc Descriptor, maxCachedFields, maxCachedConfigOptions int, multiThreaded bool, dataLimits datalimits.Limits) *ScalarUDF {
	return &ScalarUDF{
		desc:          desc,
		instance:      inst,
		multiThreaded: multiThreaded,
		fields:        newFieldCache(maxCachedFields, inst),
		configs:       newConfigCache(maxCachedConfigOptions, inst),
		dataLimits:    dataLimits,
	}
}

// Name returns the UDF's engine-visible name.
func (u *ScalarUDF) Name() string { return u.desc.Name }

// Signature is cached and constant after construction.
func (u *ScalarUDF) Signature() Signature { return u.desc.Signature }

// ReturnType may need to call into the guest. On a single-threaded
// runtime the adapter refuses rather than risk wedging the executor
//.
func (u *ScalarUDF) ReturnType(ctx context.Context, argTypes []arrow.DataType) (arrow.DataType, error) {
	if !u.multiThreaded {
		return nil, ErrInPlaceBlockingSingleThreaded
	}
	if u.desc.ReturnTypeExport == "" {
		// A guest that declares no dynamic return_type has a fixed
		// return type carried in its Signature's type_signature; callers
		// that reach here with no export configured have a Configuration
		// error elsewhere in their wiring, not an adapter concern.
		return nil, newErr(KindInternal, "UDF %q declares no return_type export", u.desc.Name)
	}

	exit, err := u.instance.Enter()
	if err != nil {
		return nil, err
	}
	trapped := true
	defer func() { exit(trapped) }()

	budgetCtx, cancel := u.instance.CallBudget(ctx)
	defer cancel()

	payload, err := encodeDataTypeList(argTypes)
	if err != nil {
		trapped = false
		return nil, withStderr(u.instance, err)
	}
	fn := u.instance.ExportedFunction(u.desc.ReturnTypeExport)
	if fn == nil {
		trapped = false
		return nil, withStderr(u.instance, newErr(KindInternal, "guest does not export %q", u.desc.ReturnTypeExport))
	}
	ptr, size, err := writeGuestBytes(budgetCtx, u.instance, payload)
	if err != nil {
		trapped = false
		return nil, withStderr(u.instance, err)
	}
	defer freeGuestBytes(budgetCtx, u.instance, ptr, size)

	results, err := fn.Call(budgetCtx, uint64(ptr), uint64(size))
	if err != nil {
		return nil, withStderr(u.instance, newErr(KindInternal, "return_type trapped: %v", err))
	}
	trapped = false

	outPtr, outLen := uint32(results[0]), uint32(results[1])
	data, ok := u.instance.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, withStderr(u.instance, newErr(KindInternal, "return_type returned an out-of-bounds buffer"))
	}
	dt, err := wire.DecodeDataType(data)
	if err != nil {
		return nil, withStderr(u.instance, err)
	}
	if err := ingress.CheckedDataType(dt, ingress.Root(u.dataLimits)); err != nil {
		return nil, withStderr(u.instance, err)
	}
	return dt, nil
}

// InvokeWithArgs is the synchronous, in-place-blocking variant. It is
// always unsupported: every scalar UDF call runs through
// InvokeAsyncWithArgs instead.
func (u *ScalarUDF) InvokeWithArgs(ctx context.Context, argFields []*rescache.Ref[arrow.Field], args []arrow.Array, returnField *rescache.Ref[arrow.Field], cfg *rescache.Ref[ConfigOptions]) (arrow.Array, error) {
	return nil, ErrSyncInvokeNotSupported
}

// InvokeAsyncWithArgs acquires the instance lock, resolves cached
// field/config resource handles, serializes args into IPC bytes,
// calls the guest entry point, and runs trusted-data ingress on the
// result.
func (u *ScalarUDF) InvokeAsyncWithArgs(ctx context.Context, argFields []*rescache.Ref[arrow.Field], args []arrow.Array, returnField *rescache.Ref[arrow.Field], cfg *rescache.Ref[ConfigOptions]) (arrow.Array, error) {
	exit, err := u.instance.Enter()
	if err != nil {
		return nil, err
	}
	trapped := true
	defer func() { exit(trapped) }()

	argHandles := make([]int32, len(argFields))
	for i, fr := range argFields {
		cf, err := u.fields.Cache(fr, u.instance)
		if err != nil {
			trapped = false
			return nil, withStderr(u.instance, newErr(KindInternal, "resolve arg field resource: %v", err))
		}
		argHandles[i] = cf.handle
	}
	retField, err := u.fields.Cache(returnField, u.instance)
	if err != nil {
		trapped = false
		return nil, withStderr(u.instance, newErr(KindInternal, "resolve return field resource: %v", err))
	}
	configHandle, err := u.configs.Cache(cfg, u.instance)
	if err != nil {
		trapped = false
		return nil, withStderr(u.instance, newErr(KindInternal, "resolve config resource: %v", err))
	}

	payload, err := buildInvokePayload(argHandles, args, retField.handle, configHandle.handle)
	if err != nil {
		trapped = false
		return nil, withStderr(u.instance, err)
	}

	fn := u.instance.ExportedFunction(u.desc.InvokeExport)
	if fn == nil {
		trapped = false
		return nil, withStderr(u.instance, newErr(KindInternal, "guest does not export %q", u.desc.InvokeExport))
	}
	ptr, size, err := writeGuestBytes(ctx, u.instance, payload)
	if err != nil {
		trapped = false
		return nil, withStderr(u.instance, err)
	}
	defer freeGuestBytes(ctx, u.instance, ptr, size)

	results, err := fn.Call(ctx, uint64(ptr), uint64(size))
	if err != nil {
		return nil, withStderr(u.instance, newErr(KindInternal, "invoke trapped: %v", err))
	}
	trapped = false

	tag, outPtr, outLen := uint32(results[0]), uint32(results[1]), uint32(results[2])
	data, ok := u.instance.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, withStderr(u.instance, newErr(KindInternal, "invoke returned an out-of-bounds buffer"))
	}

	if tag != 0 {
		kind, msg, err := decodeGuestError(data)
		if err != nil {
			return nil, withStderr(u.instance, newErr(KindInternal, "malformed guest error: %v", err))
		}
		lim := ingress.Root(u.dataLimits)
		gerr, err := ingress.FromGuestError(kind, msg, lim)
		if err != nil {
			return nil, withStderr(u.instance, err)
		}
		return nil, withStderr(u.instance, gerr)
	}

	arr, err := wire.DecodeArray(data)
	if err != nil {
		return nil, withStderr(u.instance, newErr(KindInternal, "decode result array: %v", err))
	}
	lim := ingress.Root(u.dataLimits)
	if err := ingress.CheckedDataType(arr.DataType(), lim); err != nil {
		arr.Release()
		return nil, withStderr(u.instance, err)
	}
	return arr, nil
}

func encodeDataTypeList(types []arrow.DataType) ([]byte, error) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(types)))
	buf.Write(lenBuf[:])
	for _, dt := range types {
		b, err := wire.EncodeDataType(dt)
		if err != nil {
			return nil, newErr(KindInternal, "encode arg type: %v", err)
		}
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		buf.Write(lenBuf[:])
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

func buildInvokePayload(argHandles []int32, args []arrow.Array, returnFieldHandle, configHandle int32) ([]byte, error) {
	var buf bytes.Buffer
	var u32 [4]byte

	binary.BigEndian.PutUint32(u32[:], uint32(len(args)))
	buf.Write(u32[:])
	for i, arr := range args {
		binary.BigEndian.PutUint32(u32[:], uint32(argHandles[i]))
		buf.Write(u32[:])
		b, err := wire.EncodeArray(arr)
		if err != nil {
			return nil, newErr(KindInternal, "encode arg array: %v", err)
		}
		binary.BigEndian.PutUint32(u32[:], uint32(len(b)))
		buf.Write(u32[:])
		buf.Write(b)
	}
	binary.BigEndian.PutUint32(u32[:], uint32(returnFieldHandle))
	buf.Write(u32[:])
	binary.BigEndian.PutUint32(u32[:], uint32(configHandle))
	buf.Write(u32[:])
	return buf.Bytes(), nil
}

func decodeGuestError(data []byte) (ingress.GuestKind, string, error) {
	if len(data) < 4 {
		return 0, "", newErr(KindInternal, "truncated guest error frame")
	}
	kind := ingress.GuestKind(binary.BigEndian.Uint32(data[:4]))
	return kind, string(data[4:]), nil
}
