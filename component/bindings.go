package component

import (
	"context"
	"encoding/binary"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/wasmudf/sandbox-host/httpcap"
	"github.com/wasmudf/sandbox-host/vfs"
)

// Guest-visible status codes, returned where the ABI calls for
// "result or negative error code" in a single i32. Only the handful
// the host bindings themselves can produce are enumerated; the
// remainder of the taxonomy is produced above this layer
// (ingress, udfadapter).
const (
	statusOK            int32 = 0
	statusNoEntry       int32 = -1
	statusReadOnly      int32 = -2
	statusInvalid       int32 = -3
	statusResourceMoved int32 = -4
	statusRejected      int32 = -5
	statusExhausted     int32 = -6
)

func vfsStatus(err error) int32 {
	switch {
	case err == nil:
		return statusOK
	case vfs.IsKind(err, vfs.ErrNoEntry):
		return statusNoEntry
	case vfs.IsKind(err, vfs.ErrReadOnly):
		return statusReadOnly
	case vfs.IsKind(err, vfs.ErrExist), vfs.IsKind(err, vfs.ErrNotDirectory), vfs.IsKind(err, vfs.ErrIsDirectory), vfs.IsKind(err, vfs.ErrInvalid):
		return statusInvalid
	default:
		return statusExhausted
	}
}

// bindHost registers the "wasmudf:host" module the guest links
// against: the filesystem, HTTP-validation, stderr, and
// environment capability surface exposed to every guest component.
func bindHost(rt wazero.Runtime, st *guestState) (wazero.CompiledModule, error) {
	ctx := context.Background()
	b := rt.NewHostModuleBuilder("wasmudf:host")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, handle int32, pathPtr, pathLen uint32, openFlags, descFlags uint32) int32 {
			return hostFSOpenAt(m, st, handle, pathPtr, pathLen, openFlags, descFlags)
		}).
		Export("fs_open_at")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, handle int32, offset uint64, length, outPtr uint32) int32 {
			return hostFSRead(m, st, handle, offset, length, outPtr)
		}).
		Export("fs_read")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, handle int32, outPtr uint32) int32 {
			return hostFSStat(m, st, handle, outPtr)
		}).
		Export("fs_stat")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, handle int32) int32 {
			st.descriptors.release(handle)
			return statusOK
		}).
		Export("fs_close")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, methodPtr, methodLen, hostPtr, hostLen uint32, port, useTLS uint32) int32 {
			return hostHTTPValidate(m, st, methodPtr, methodLen, hostPtr, hostLen, port, useTLS)
		}).
		Export("http_validate")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) int32 {
			return hostStderrWrite(m, st, ptr, length)
		}).
		Export("stderr_write")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, namePtr, nameLen, outPtr, outCap uint32) int32 {
			return hostEnvGet(m, st, namePtr, nameLen, outPtr, outCap)
		}).
		Export("env_get")

	// source_len/source_read expose the verbatim source string passed
	// at link time (the "the source string is passed verbatim to
	// the guest at link time, allowing the guest to compile/register
	// its own functions").
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module) int32 {
			return int32(len(st.source))
		}).
		Export("source_len")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, outPtr uint32) int32 {
			if !m.Memory().Write(outPtr, []byte(st.source)) {
				return statusInvalid
			}
			return int32(len(st.source))
		}).
		Export("source_read")

	return b.Compile(ctx)
}

func readGuestString(m api.Module, ptr, length uint32) (string, bool) {
	b, ok := m.Memory().Read(ptr, length)
	if !ok {
		return "", false
	}
	return string(b), true
}

func hostFSOpenAt(m api.Module, st *guestState, handle int32, pathPtr, pathLen, openFlags, descFlags uint32) int32 {
	d, ok := st.descriptors.get(handle)
	if !ok {
		return statusResourceMoved
	}
	path, ok := readGuestString(m, pathPtr, pathLen)
	if !ok {
		return statusInvalid
	}
	newDesc, err := st.vfs.OpenAt(d, path, vfs.OpenFlags(openFlags), vfs.Flags(descFlags))
	if err != nil {
		return vfsStatus(err)
	}
	return st.descriptors.insert(newDesc)
}

func hostFSRead(m api.Module, st *guestState, handle int32, offset uint64, length, outPtr uint32) int32 {
	d, ok := st.descriptors.get(handle)
	if !ok {
		return statusResourceMoved
	}
	data, _, err := st.vfs.Read(d, int(length), int64(offset))
	if err != nil {
		return vfsStatus(err)
	}
	if !m.Memory().Write(outPtr, data) {
		return statusInvalid
	}
	return int32(len(data))
}

func hostFSStat(m api.Module, st *guestState, handle int32, outPtr uint32) int32 {
	d, ok := st.descriptors.get(handle)
	if !ok {
		return statusResourceMoved
	}
	stat := st.vfs.Stat(d)
	var buf [16]byte
	buf[0] = byte(stat.Kind)
	binary.LittleEndian.PutUint64(buf[8:], uint64(stat.Size))
	if !m.Memory().Write(outPtr, buf[:]) {
		return statusInvalid
	}
	return statusOK
}

func hostHTTPValidate(m api.Module, st *guestState, methodPtr, methodLen, hostPtr, hostLen, port, useTLS uint32) int32 {
	method, ok := readGuestString(m, methodPtr, methodLen)
	if !ok {
		return statusInvalid
	}
	host, ok := readGuestString(m, hostPtr, hostLen)
	if !ok {
		return statusInvalid
	}
	req := httpcap.Request{Method: method, Host: host, Port: int(port)}
	if err := st.http.Validate(req, useTLS != 0); err != nil {
		return statusRejected
	}
	return statusOK
}

func hostStderrWrite(m api.Module, st *guestState, ptr, length uint32) int32 {
	b, ok := m.Memory().Read(ptr, length)
	if !ok {
		return statusInvalid
	}
	n, _ := st.stderr.Write(b)
	return int32(n)
}

func hostEnvGet(m api.Module, st *guestState, namePtr, nameLen, outPtr, outCap uint32) int32 {
	name, ok := readGuestString(m, namePtr, nameLen)
	if !ok {
		return statusInvalid
	}
	val, ok := st.envs[name]
	if !ok {
		return statusNoEntry
	}
	if uint32(len(val)) > outCap {
		return statusExhausted
	}
	if !m.Memory().Write(outPtr, []byte(val)) {
		return statusInvalid
	}
	return int32(len(val))
}
