package capconfig

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Defaults applied by Resolve when the corresponding File field is
// left at its zero value: "zero means use documented default".
const (
	DefaultEpochTickTime           = time.Millisecond
	DefaultInplaceBlockingMaxTicks = 5000
	DefaultMaxPathLength           = 4096
	DefaultMaxPathSegmentSize      = 255
	DefaultMaxIdentifierLength     = 1024
	DefaultMaxAuxStringLength      = 8192
	DefaultMaxDepth                = 128
	DefaultMaxComplexity           = 4096
	DefaultMaxCachedFields         = 256
	DefaultMaxCachedConfigOptions  = 64
)

// File is the on-disk, TOML-decodable shape of Permissions (HTTP
// validator excluded: it has no flat TOML representation and is wired
// by the caller after decoding). Field names mirror
// stargz.Config/snapshot.Config's flat, toml-tagged struct style.
type File struct {
	EnvAllow []string `toml:"env_allow"`

	StderrBytes             int64 `toml:"stderr_bytes"`
	EpochTickTimeMillis     int64 `toml:"epoch_tick_time_ms"`
	InplaceBlockingMaxTicks int64 `toml:"inplace_blocking_max_ticks"`

	NInstances int `toml:"resource_n_instances"`

	MaxIdentifierLength int `toml:"max_identifier_length"`
	MaxAuxStringLength  int `toml:"max_aux_string_length"`
	MaxDepth            int `toml:"max_depth"`
	MaxComplexity       int `toml:"max_complexity"`

	VFSInodes             int64 `toml:"vfs_inodes"`
	VFSBytes              int64 `toml:"vfs_bytes"`
	VFSMaxPathLength      int   `toml:"vfs_max_path_length"`
	VFSMaxPathSegmentSize int   `toml:"vfs_max_path_segment_size"`

	MaxCachedFields        int `toml:"max_cached_fields"`
	MaxCachedConfigOptions int `toml:"max_cached_config_options"`
}

// LoadFile decodes a File from a TOML document at path.
func LoadFile(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, errors.Wrap(err, "decode capability config")
	}
	return &f, nil
}

func nonZero(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
