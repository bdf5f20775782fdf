package platform_test

import (
	"testing"

	"github.com/marty-build/marty/internal/platform"
	"github.com/stretchr/testify/require"
)

func TestForKnownPairs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		goos, goarch, triple, ext string
	}{
		{"linux", "amd64", "x86_64-unknown-linux-gnu", "so"},
		{"linux", "arm64", "aarch64-unknown-linux-gnu", "so"},
		{"darwin", "amd64", "x86_64-apple-darwin", "dylib"},
		{"darwin", "arm64", "aarch64-apple-darwin", "dylib"},
		{"windows", "amd64", "x86_64-pc-windows-msvc", "dll"},
		{"windows", "arm64", "aarch64-pc-windows-msvc", "dll"},
	}

	for _, tc := range cases {
		target, err := platform.For(tc.goos, tc.goarch)
		require.NoError(t, err)
		require.Equal(t, tc.triple, target.Triple)
		require.Equal(t, tc.ext, target.Extension)
	}
}

func TestForUnknownPair(t *testing.T) {
	t.Parallel()

	_, err := platform.For("plan9", "386")
	require.Error(t, err)
	require.Contains(t, err.Error(), "plan9/386")
}
