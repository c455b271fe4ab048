package udfadapter

import (
	"context"

	"github.com/apache/arrow/go/arrow"

	"github.com/wasmudf/sandbox-host/component"
	"github.com/wasmudf/sandbox-host/rescache"
)

// ConfigOptions is the guest-visible `ConfigOptions` resource: a
// flat set of caller-supplied key/value options (e.g. session or
// per-call planner settings) the guest can query by key.
type ConfigOptions struct {
	Values map[string]string
}

// cachedField and cachedConfig are the guest-side resource handles
// the resource cache amortizes: constructing one costs a
// guest call (a Field or ConfigOptions resource import), so the
// adapter caches them keyed by the identity of the caller-owned Field
// or ConfigOptions the engine passes in across batches.
type cachedField struct{ handle int32 }

func (f *cachedField) Clean(inst *component.Instance) error {
	fn := inst.ExportedFunction("field_drop")
	if fn == nil {
		return nil
	}
	_, err := fn.Call(context.Background(), uint64(uint32(f.handle)))
	return err
}

type cachedConfig struct{ handle int32 }

func (c *cachedConfig) Clean(inst *component.Instance) error {
	fn := inst.ExportedFunction("config_drop")
	if fn == nil {
		return nil
	}
	_, err := fn.Call(context.Background(), uint64(uint32(c.handle)))
	return err
}

// fieldCache and configCache cache guest resource handles, evicting
// LRU-style and releasing the guest-side handle exactly once per
// eviction (rescache.Cache's own invariant).
type fieldCache = rescache.Cache[arrow.Field, *cachedField, *component.Instance]
type configCache = rescache.Cache[ConfigOptions, *cachedConfig, *component.Instance]

func newFieldCache(max int, inst *component.Instance) *fieldCache {
	return rescache.New[arrow.Field, *cachedField](max, func(k *rescache.Ref[arrow.Field], _ *component.Instance) (*cachedField, error) {
		fn := inst.ExportedFunction("field_new")
		if fn == nil {
			return &cachedField{}, nil
		}
		data, err := encodeFieldType(k.Get().Type)
		if err != nil {
			return nil, err
		}
		handle, err := callWithBytesArg(context.Background(), inst, fn, data)
		if err != nil {
			return nil, newErr(KindInternal, "construct field resource: %v", err)
		}
		return &cachedField{handle: int32(handle)}, nil
	})
}

func newConfigCache(max int, inst *component.Instance) *configCache {
	return rescache.New[ConfigOptions, *cachedConfig](max, func(k *rescache.Ref[ConfigOptions], _ *component.Instance) (*cachedConfig, error) {
		fn := inst.ExportedFunction("config_new")
		if fn == nil {
			return &cachedConfig{}, nil
		}
		handle, err := callConfigNew(inst, fn, k.Get().Values)
		if err != nil {
			return nil, newErr(KindInternal, "construct config resource: %v", err)
		}
		return &cachedConfig{handle: int32(handle)}, nil
	})
}
