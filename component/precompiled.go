package component

import (
	"context"
	"encoding/binary"
	"runtime"
	"sync"

	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
)

var (
	cacheMu sync.Mutex
	cache   wazero.CompilationCache
)

// compilationCache returns the process-wide wazero.CompilationCache
// backing every CompileModule call this package makes (Compile, Load,
// and component instantiation), lazily creating an in-memory cache on
// first use. This is what makes Load of a previously-compiled artifact
// (by this process, or by SetCompilationCacheDir, any process sharing
// the cache directory) a cache hit rather than a repeat of the full
// compiler pass Compile originally paid for.
func compilationCache() wazero.CompilationCache {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	return cache
}

// SetCompilationCacheDir switches the process-wide compilation cache
// to a file-backed directory, so Compile/Load/instantiation benefit
// from cache hits across process restarts, not just within one
// process's lifetime. Call once at startup, before the first Compile
// or Load. Returns the prior cache's close error, if any.
func SetCompilationCacheDir(dir string) error {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	prior := cache
	c, err := wazero.NewCompilationCacheWithDir(dir)
	if err != nil {
		return errors.Wrap(err, "open file-backed compilation cache")
	}
	cache = c
	if prior != nil {
		return prior.Close(context.Background())
	}
	return nil
}

// CompilationFlags is the "compilation flags": an optional
// target triple. The zero value (nil Target) means "host
// configuration".
type CompilationFlags struct {
	Target *string
}

// Precompiled is the "precompiled component": an opaque byte
// blob plus the target triple it was compiled for. Immutable once
// constructed.
type Precompiled struct {
	wasm   []byte
	target string
	digest digest.Digest
}

// hostTarget names the triple a Precompiled compiled with a nil
// CompilationFlags.Target is implicitly targeting.
func hostTarget() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// Compile precompiles raw guest WebAssembly bytecode against the
// process-wide wazero.CompilationCache: it eagerly compiles the module
// so a malformed module is rejected here rather than surfacing later
// at instance-creation time, and the resulting compiled code is left
// in the cache for every later Load or instantiation of the same
// bytes to reuse.
func Compile(ctx context.Context, wasmBytes []byte, flags CompilationFlags) (*Precompiled, error) {
	target := hostTarget()
	if flags.Target != nil {
		target = *flags.Target
	}

	rtCfg := wazero.NewRuntimeConfig().WithCompilationCache(compilationCache())
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)
	defer rt.Close(ctx)
	mod, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, newErr(KindConfiguration, err, "compile guest component")
	}
	defer mod.Close(ctx)

	return &Precompiled{
		wasm:   wasmBytes,
		target: target,
		digest: digest.FromBytes(wasmBytes),
	}, nil
}

// Store serializes p to a raw byte blob suitable for persistence and
// later Load. The format is a minimal self-describing frame: a
// length-prefixed target triple, a length-prefixed digest string,
// then the raw wasm bytes — opaque and architecture-specific, so Load
// can refuse to rehydrate an artifact built for a different host.
func (p *Precompiled) Store() []byte {
	target := []byte(p.target)
	dig := []byte(p.digest.String())

	buf := make([]byte, 0, 4+len(target)+4+len(dig)+len(p.wasm))
	buf = appendLenPrefixed(buf, target)
	buf = appendLenPrefixed(buf, dig)
	buf = append(buf, p.wasm...)
	return buf
}

func appendLenPrefixed(buf, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, b...)
}

func readLenPrefixed(b []byte) (field, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, errors.New("truncated frame")
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(n) {
		return nil, nil, errors.New("truncated frame")
	}
	return b[:n], b[n:], nil
}

// Load rehydrates a Precompiled from bytes produced by Store. It
// refuses artifacts whose recorded target triple does not match this
// host or whose digest does not match the carried bytes (tampering,
// truncation, or a cross-architecture artifact — never a crash), then
// runs the same CompileModule call Compile did, against the same
// process-wide wazero.CompilationCache: if this process (or, with
// SetCompilationCacheDir, any process sharing the cache directory)
// already compiled these exact bytes, this is a cache hit rather than
// a second full compiler pass.
func Load(ctx context.Context, b []byte) (*Precompiled, error) {
	targetB, rest, err := readLenPrefixed(b)
	if err != nil {
		return nil, newErr(KindConfiguration, err, "load precompiled component: malformed header")
	}
	digB, wasmBytes, err := readLenPrefixed(rest)
	if err != nil {
		return nil, newErr(KindConfiguration, err, "load precompiled component: malformed header")
	}

	target := string(targetB)
	if target != hostTarget() {
		return nil, newErr(KindConfiguration, nil,
			"load precompiled component: compiled for %q, host is %q", target, hostTarget())
	}

	wantDigest, err := digest.Parse(string(digB))
	if err != nil {
		return nil, newErr(KindConfiguration, err, "load precompiled component: malformed digest")
	}
	gotDigest := digest.FromBytes(wasmBytes)
	if gotDigest != wantDigest {
		return nil, newErr(KindConfiguration, nil,
			"load precompiled component: digest mismatch (tampered or truncated artifact)")
	}

	rtCfg := wazero.NewRuntimeConfig().WithCompilationCache(compilationCache())
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)
	defer rt.Close(ctx)
	mod, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, newErr(KindConfiguration, err, "load precompiled component: recompile failed")
	}
	defer mod.Close(ctx)

	return &Precompiled{wasm: wasmBytes, target: target, digest: gotDigest}, nil
}
