// Package service wires together a precompiled guest component, a
// shared memory pool, and a pool of component.Instance values into the
// one object a caller actually needs: a set of engine-visible scalar
// UDF adapters. The constructor follows a resolve-configuration,
// build-the-runtime-object, hand-back-a-ready-host split.
package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"

	"github.com/wasmudf/sandbox-host/capconfig"
	"github.com/wasmudf/sandbox-host/component"
	"github.com/wasmudf/sandbox-host/httpcap"
	"github.com/wasmudf/sandbox-host/limiter"
	"github.com/wasmudf/sandbox-host/udfadapter"
)

// Option configures a Host at construction.
type Option func(*options)

type options struct {
	http          httpcap.Validator
	numInstances  int
	memoryCeiling int64
	source        string
	multiThreaded bool
}

// WithHTTPValidator injects the capability's HTTP validator. capconfig
// File carries no inline HTTP policy (see capconfig.File's doc
// comment), so callers wire it here.
func WithHTTPValidator(v httpcap.Validator) Option {
	return func(o *options) { o.http = v }
}

// WithInstancePoolSize sets how many component.Instance values back
// this Host's adapters, achieving parallelism across UDF calls by
// instantiating multiple components rather than multiplexing one.
// Defaults to 1.
func WithInstancePoolSize(n int) Option {
	return func(o *options) { o.numInstances = n }
}

// WithMemoryCeiling bounds the memory pool shared across every
// instance in the pool. Zero or
// negative means unbounded.
func WithMemoryCeiling(bytes int64) Option {
	return func(o *options) { o.memoryCeiling = bytes }
}

// WithSource sets the guest UDF source text passed verbatim to every
// instance at construction.
func WithSource(source string) Option {
	return func(o *options) { o.source = source }
}

// WithMultiThreaded declares whether the caller's own task executor is
// multi-threaded. Defaults to true (a Go process is inherently
// multi-threaded): set false only when embedding this host inside a
// single-threaded executor, which disables ReturnType
func WithMultiThreaded(multi bool) Option {
	return func(o *options) { o.multiThreaded = multi }
}

// Host is the long-lived runtime object a caller constructs once per
// precompiled component: a pool of component.Instance values sharing
// one memory pool, assigned round-robin to the adapters Adapters
// returns to spread load.
type Host struct {
	mu        sync.Mutex
	instances []*component.Instance

	perm          capconfig.Permissions
	precompiled   *component.Precompiled
	multiThreaded bool

	log *logrus.Entry
}

// New builds a Host: it resolves cfg into Permissions, constructs a
// shared memory pool, and instantiates the configured pool size of
// component.Instance, each linked against precompiled and populated
// with the same root filesystem image.
func New(ctx context.Context, root string, cfg *capconfig.File, precompiled *component.Precompiled, opts ...Option) (*Host, error) {
	var o options
	o.numInstances = 1
	o.multiThreaded = true
	for _, opt := range opts {
		opt(&o)
	}

	perm := capconfig.Resolve(cfg, o.http)

	var pool limiter.MemoryPool
	if o.memoryCeiling > 0 {
		pool = &limiter.GreedyPool{Ceiling: o.memoryCeiling}
	} else {
		pool = &limiter.GreedyPool{}
	}

	log := logrus.WithFields(logrus.Fields{"component": "service", "root": root})

	h := &Host{
		perm:          perm,
		precompiled:   precompiled,
		multiThreaded: o.multiThreaded,
		log:           log,
	}

	for i := 0; i < o.numInstances; i++ {
		inst, err := component.NewInstance(ctx, precompiled, perm, pool, o.source)
		if err != nil {
			h.closeAll(ctx)
			return nil, errors.Wrapf(err, "construct component instance %d/%d", i+1, o.numInstances)
		}
		h.instances = append(h.instances, inst)
	}

	log.WithField("instances", len(h.instances)).Info("component instance pool ready")
	return h, nil
}

func (h *Host) closeAll(ctx context.Context) {
	for _, inst := range h.instances {
		if err := inst.Close(ctx); err != nil {
			h.log.WithError(err).Warn("failed to close component instance during teardown")
		}
	}
	h.instances = nil
}

// Close tears down every instance in the pool.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeAll(ctx)
	return nil
}

// Adapters discovers every scalar UDF the guest component declares
// (via its "udfs" export) and returns the ones named in names, or
// every declared UDF when names is empty. Each adapter is bound to a
// pool instance round-robin by the UDF's position in the guest's
// declaration list; adapters bound to the same instance serialize on
// its store-mutex.
func (h *Host) Adapters(ctx context.Context, names []string) ([]*udfadapter.ScalarUDF, error) {
	h.mu.Lock()
	instances := append([]*component.Instance(nil), h.instances...)
	h.mu.Unlock()
	if len(instances) == 0 {
		return nil, errors.New("service: no component instances in pool")
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	descs, err := udfadapter.Discover(ctx, instances[0])
	if err != nil {
		return nil, errors.Wrap(err, "discover scalar UDFs")
	}

	var out []*udfadapter.ScalarUDF
	for i, desc := range descs {
		if len(wanted) > 0 && !wanted[desc.Name] {
			continue
		}
		inst := instances[i%len(instances)]
		out = append(out, udfadapter.New(inst, desc, h.perm.MaxCachedFields, h.perm.MaxCachedConfigOptions, h.multiThreaded, h.perm.TrustedDataLimits))
	}
	if len(wanted) > 0 && len(out) != len(wanted) {
		return nil, errors.Errorf("service: %d of %d requested UDFs were not declared by the guest component", len(wanted)-len(out), len(wanted))
	}
	return out, nil
}

// Supported is a pre-flight check run before any instance is
// constructed: it builds and closes a throwaway wazero runtime. It
// does not probe individual WebAssembly features. It is exposed
// standalone so downstream callers can probe usability before
// committing to building a Host.
func Supported(ctx context.Context) error {
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	// wazero's interpreter and compiler both implement the baseline
	// WebAssembly 1.0 feature set this host requires; constructing and
	// closing a throwaway runtime is enough to surface an engine-level
	// misconfiguration (e.g. an unsupported GOARCH) before any guest
	// component is ever compiled against it.
	if rt == nil {
		return errors.New("service: failed to construct a wazero runtime")
	}
	return nil
}
