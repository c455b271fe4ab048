package capconfig

import (
	"os"
	"strings"
	"time"

	"github.com/wasmudf/sandbox-host/datalimits"
	"github.com/wasmudf/sandbox-host/httpcap"
	"github.com/wasmudf/sandbox-host/limiter"
	"github.com/wasmudf/sandbox-host/vfs"
)

// Resolve builds a Permissions from a decoded File, an explicit HTTP
// validator (File carries no inline HTTP policy — see File's doc
// comment), and the process environment to source EnvAllow values
// from. Zero-valued numeric fields fall back to the Default*
// constants, except StderrBytes, VFSInodes and VFSBytes, which fall
// back to fixed sizes (64 KiB, 1<<20 inodes, 1 GiB), and NInstances,
// which stays zero and leaves the instance count unbounded.
func Resolve(f *File, http httpcap.Validator) Permissions {
	envs := make(map[string]string, len(f.EnvAllow))
	for _, name := range f.EnvAllow {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if v, ok := os.LookupEnv(name); ok {
			envs[name] = v
		}
	}

	if http == nil {
		http = httpcap.RejectAll{}
	}

	return Permissions{
		Envs:                    envs,
		StderrBytes:             nonZero(f.StderrBytes, 64*1024),
		EpochTickTime:           tickTime(f.EpochTickTimeMillis),
		InplaceBlockingMaxTicks: uint64(nonZero(f.InplaceBlockingMaxTicks, DefaultInplaceBlockingMaxTicks)),
		ResourceLimits: limiter.ResourceLimits{
			NInstances: f.NInstances,
		},
		TrustedDataLimits: datalimits.Limits{
			MaxIdentifierLength: nonZeroInt(f.MaxIdentifierLength, DefaultMaxIdentifierLength),
			MaxAuxStringLength:  nonZeroInt(f.MaxAuxStringLength, DefaultMaxAuxStringLength),
			MaxDepth:            nonZeroInt(f.MaxDepth, DefaultMaxDepth),
			MaxComplexity:       nonZeroInt(f.MaxComplexity, DefaultMaxComplexity),
		},
		VFS: vfs.Limits{
			Inodes:             nonZero(f.VFSInodes, 1<<20),
			Bytes:              nonZero(f.VFSBytes, 1<<30),
			MaxPathLength:      nonZeroInt(f.VFSMaxPathLength, DefaultMaxPathLength),
			MaxPathSegmentSize: nonZeroInt(f.VFSMaxPathSegmentSize, DefaultMaxPathSegmentSize),
		},
		HTTP:                   http,
		MaxCachedFields:        nonZeroInt(f.MaxCachedFields, DefaultMaxCachedFields),
		MaxCachedConfigOptions: nonZeroInt(f.MaxCachedConfigOptions, DefaultMaxCachedConfigOptions),
	}
}

func tickTime(ms int64) time.Duration {
	if ms == 0 {
		return DefaultEpochTickTime
	}
	return time.Duration(ms) * time.Millisecond
}
