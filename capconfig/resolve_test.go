package capconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveAppliesDefaultsOnZero(t *testing.T) {
	p := Resolve(&File{}, nil)
	require.Equal(t, DefaultEpochTickTime, p.EpochTickTime)
	require.Equal(t, uint64(DefaultInplaceBlockingMaxTicks), p.InplaceBlockingMaxTicks)
	require.Equal(t, DefaultMaxIdentifierLength, p.TrustedDataLimits.MaxIdentifierLength)
	require.Equal(t, DefaultMaxPathLength, p.VFS.MaxPathLength)
	require.NotNil(t, p.HTTP)
}

func TestResolveHonorsExplicitValues(t *testing.T) {
	f := &File{
		StderrBytes:         4096,
		MaxIdentifierLength: 32,
		VFSMaxPathLength:    128,
	}
	p := Resolve(f, nil)
	require.EqualValues(t, 4096, p.StderrBytes)
	require.Equal(t, 32, p.TrustedDataLimits.MaxIdentifierLength)
	require.Equal(t, 128, p.VFS.MaxPathLength)
}

func TestResolveEnvAllowFiltersUnsetVars(t *testing.T) {
	t.Setenv("WASMUDF_TEST_VAR", "present")
	f := &File{EnvAllow: []string{"WASMUDF_TEST_VAR", "WASMUDF_DEFINITELY_UNSET"}}
	p := Resolve(f, nil)
	require.Equal(t, map[string]string{"WASMUDF_TEST_VAR": "present"}, p.Envs)
}
