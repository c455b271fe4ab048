// Package capconfig enumerates the capability grants of the
// Permissions data model: the full set of resource caps, filesystem
// and HTTP access, and timing parameters a component instance is
// constructed with.
package capconfig

import (
	"time"

	"github.com/wasmudf/sandbox-host/datalimits"
	"github.com/wasmudf/sandbox-host/httpcap"
	"github.com/wasmudf/sandbox-host/limiter"
	"github.com/wasmudf/sandbox-host/vfs"
)

// Permissions is the capability set, passed verbatim to
// component.NewInstance.
type Permissions struct {
	Envs                   map[string]string
	StderrBytes            int64
	EpochTickTime          time.Duration
	InplaceBlockingMaxTicks uint64
	ResourceLimits         limiter.ResourceLimits
	TrustedDataLimits      datalimits.Limits
	VFS                    vfs.Limits
	HTTP                   httpcap.Validator
	MaxCachedFields        int
	MaxCachedConfigOptions int
}
