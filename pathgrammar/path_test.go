package pathgrammar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseS1(t *testing.T) {
	got, err := Parse("/foo/./../bar", Limits{MaxPathLength: 255, MaxPathSegmentSize: 255})
	require.NoError(t, err)
	require.True(t, got.Absolute)
	require.Equal(t, []Direction{
		{Kind: Down, Segment: "foo"},
		{Kind: Stay},
		{Kind: Up},
		{Kind: Down, Segment: "bar"},
	}, got.Directions)
}

func TestParseS2PathLimit(t *testing.T) {
	p := strings.Repeat("x", 256)
	_, err := Parse(p, Limits{MaxPathLength: 255})
	require.Error(t, err)
	require.Equal(t, "path limit reached: limit<=255 current==0 requested+=256", err.Error())
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("", Limits{})
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ErrInvalidFilename, pe.Kind)
}

func TestParseNUL(t *testing.T) {
	_, err := Parse("/foo\x00bar", Limits{})
	require.Error(t, err)
}

func TestParseSegmentLimit(t *testing.T) {
	_, err := Parse("/"+strings.Repeat("y", 10), Limits{MaxPathSegmentSize: 5})
	require.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	lim := Limits{MaxPathLength: 255, MaxPathSegmentSize: 64}
	for _, p := range []string{"/foo/./../bar", "a/b/c", "../x", "/", "."} {
		first, err := Parse(p, lim)
		require.NoError(t, err)
		second, err := Parse(first.Join(), lim)
		require.NoError(t, err)
		require.Equal(t, first.Directions, second.Directions, "round trip for %q", p)
	}
}
