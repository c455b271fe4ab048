package component

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/sync/errgroup"

	"github.com/wasmudf/sandbox-host/capconfig"
	"github.com/wasmudf/sandbox-host/limiter"
	"github.com/wasmudf/sandbox-host/vfs"
)

// Instance is this module's "component instance": a live, linked
// guest together with the engine, background epoch task, and
// store-mutex that serialize and bound every entry into it.
type Instance struct {
	id xid.ID

	runtime wazero.Runtime
	module  api.Module
	engine  *engineHandle

	state *guestState
	gate  entryGate

	perm capconfig.Permissions

	cancelEpoch context.CancelFunc
	epochGroup  *errgroup.Group

	log *logrus.Entry
}

// NewInstance runs the full construction sequence: fresh
// engine, epoch ticker, artifact rehydration, store construction,
// binding link, and root_fs_tar population.
func NewInstance(ctx context.Context, precompiled *Precompiled, perm capconfig.Permissions, pool limiter.MemoryPool, source string) (*Instance, error) {
	id := xid.New()
	log := logrus.WithFields(logrus.Fields{"component": "instance", "id": id.String()})

	// Step 1: a fresh engine, configured so a call aborts promptly once
	// its derived context is done (this host's realization of epoch
	// interruption — see DESIGN.md), and sharing the process-wide
	// compilation cache so rehydrating a Precompiled artifact here is a
	// cache hit rather than a second compiler pass.
	rtCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true).WithCompilationCache(compilationCache())
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)

	engine := newEngineHandle(rt)
	epochCtx, cancelEpoch := context.WithCancel(context.Background())
	g, _ := errgroup.WithContext(epochCtx)

	// Step 2: background tick task.
	tickPeriod := perm.EpochTickTime
	if tickPeriod <= 0 {
		tickPeriod = capconfig.DefaultEpochTickTime
	}
	startEpochTicker(epochCtx, g, engine, tickPeriod)

	cleanup := func() {
		cancelEpoch()
		_ = g.Wait()
		engine.drop()
		_ = rt.Close(ctx)
	}

	// Step 3: rehydrate the precompiled artifact against the engine.
	compiled, err := rt.CompileModule(ctx, precompiled.wasm)
	if err != nil {
		cleanup()
		return nil, newErr(KindConfiguration, err, "rehydrate precompiled component")
	}

	// Step 4: store's mutable state.
	state, err := newGuestState(pool, perm, source)
	if err != nil {
		cleanup()
		return nil, err
	}

	// Step 6 (memory-limiter registration is implicit: guestState already
	// threads the Memory limiter through the fs binding) and step 7:
	// link the guest bindings.
	hostMod, err := bindHost(rt, state)
	if err != nil {
		state.close()
		cleanup()
		return nil, newErr(KindConfiguration, err, "compile host bindings")
	}
	if _, err := rt.InstantiateModule(ctx, hostMod, wazero.NewModuleConfig().WithName("wasmudf:host")); err != nil {
		state.close()
		cleanup()
		return nil, newErr(KindConfiguration, err, "instantiate host bindings")
	}

	modCfg := wazero.NewModuleConfig().WithName(id.String())
	for k, v := range perm.Envs {
		modCfg = modCfg.WithEnv(k, v)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		state.close()
		cleanup()
		return nil, newErr(KindConfiguration, err, "instantiate guest component")
	}

	inst := &Instance{
		id:          id,
		runtime:     rt,
		module:      mod,
		engine:      engine,
		state:       state,
		perm:        perm,
		cancelEpoch: cancelEpoch,
		epochGroup:  g,
		log:         log,
	}

	if err := inst.populateRootFS(ctx); err != nil {
		inst.Close(ctx)
		return nil, err
	}

	log.Debug("component instance constructed")
	return inst, nil
}

// populateRootFS is step 7's "invoke the guest's root_fs_tar() hook;
// if a non-empty TAR is returned, populate the VFS".
func (inst *Instance) populateRootFS(ctx context.Context) error {
	fn := inst.module.ExportedFunction("root_fs_tar")
	if fn == nil {
		return nil // the guest declined to provide an initial image
	}
	results, err := fn.Call(ctx)
	if err != nil {
		return newErr(KindTrap, err, "root_fs_tar")
	}
	ptr, size := uint32(results[0]>>32), uint32(results[0])
	if size == 0 {
		return nil
	}
	tarBytes, ok := inst.module.Memory().Read(ptr, size)
	if !ok {
		return newErr(KindInternal, nil, "root_fs_tar returned an out-of-bounds buffer")
	}
	if err := inst.state.vfs.PopulateFromTAR(vfs.NewArchiveTarReader(bytes.NewReader(tarBytes))); err != nil {
		return newErr(KindResourcesExhausted, err, "populate root filesystem")
	}
	return nil
}

// Poisoned reports whether a prior guest entry trapped.
func (inst *Instance) Poisoned() bool { return inst.gate.isPoisoned() }

// Enter acquires the instance's store-mutex for the duration of one
// guest call, returning ErrCannotEnter immediately if the instance is
// already poisoned. A trapped call poisons the instance for good: every
// later entry fails the same way. The returned exit func must be
// deferred by the caller, passing whether the call trapped.
func (inst *Instance) Enter() (func(trapped bool), error) {
	return inst.gate.enter()
}

// CallBudget derives a bounded context for a single in-place-blocking
// synchronous host call.
func (inst *Instance) CallBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	return callWithBudget(ctx, inst.perm.EpochTickTime, inst.perm.InplaceBlockingMaxTicks)
}

// StderrTail returns the first kilobytes of captured guest stderr, for
// error reporting.
func (inst *Instance) StderrTail(maxBytes int) []byte {
	b := inst.state.stderr.Bytes()
	if len(b) > maxBytes {
		b = b[:maxBytes]
	}
	return b
}

// ExportedFunction resolves a guest export by name, for udfadapter to
// call scalar UDF entry points discovered via udfs(source).
func (inst *Instance) ExportedFunction(name string) api.Function {
	return inst.module.ExportedFunction(name)
}

// Memory exposes the guest's linear memory for marshaling wire bytes
// in and call results out.
func (inst *Instance) Memory() api.Memory { return inst.module.Memory() }

// Close drops the instance: it cancels the epoch ticker (observing the
// drop via the weak engine handle, per the lifecycle note),
// releases the reserved stderr buffer and instance-count slot, and
// closes the wazero runtime.
func (inst *Instance) Close(ctx context.Context) error {
	inst.cancelEpoch()
	_ = inst.epochGroup.Wait()
	inst.engine.drop()
	inst.state.close()
	if err := inst.runtime.Close(ctx); err != nil {
		return errors.Wrap(err, "close component instance")
	}
	return nil
}
