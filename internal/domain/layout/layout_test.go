package layout

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestOutputDir checks that the profile directory follows the release flag.
func TestOutputDir(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		filepath.Join("/src/cleo", "target", "aarch64-apple-ios", "release"),
		OutputDir("/src/cleo", "aarch64-apple-ios", true))
	require.Equal(t,
		filepath.Join("/src/cleo", "target", "aarch64-apple-ios", "debug"),
		OutputDir("/src/cleo", "aarch64-apple-ios", false))
}

// TestArtifacts checks the library names derived from the crate.
func TestArtifacts(t *testing.T) {
	t.Parallel()

	out := filepath.Join("/src", "out")
	require.Equal(t, filepath.Join(out, "libcleo.a"), Archive(out, "cleo"))
	require.Equal(t, filepath.Join(out, "libcleo.dylib"), Dylib(out, "cleo"))
}

// TestSchemes covers every scheme-dependent name.
func TestSchemes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		scheme    Scheme
		deb       string
		control   string
		substrate string
		remote    string
	}{
		{
			scheme:    Rootful,
			deb:       "cleo.rootful.deb",
			control:   filepath.Join("/p", "deb", "control.rootful"),
			substrate: "Library/MobileSubstrate/DynamicLibraries",
			remote:    "/Library/MobileSubstrate/DynamicLibraries/CLEO",
		},
		{
			scheme:    Rootless,
			deb:       "cleo.rootless.deb",
			control:   filepath.Join("/p", "deb", "control.rootless"),
			substrate: "var/jb/Library/MobileSubstrate/DynamicLibraries",
			remote:    "/var/jb/Library/MobileSubstrate/DynamicLibraries/CLEO",
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.scheme.String(), func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.deb, DebName(tc.scheme))
			require.Equal(t, tc.control, ControlSource("/p", tc.scheme))
			require.Equal(t, tc.substrate, SubstrateDir(tc.scheme))
			require.Equal(t, tc.remote, RemoteStem(tc.scheme, "CLEO"))
		})
	}
}

// TestPlistSource checks the fixed filter plist location.
func TestPlistSource(t *testing.T) {
	t.Parallel()

	require.Equal(t, filepath.Join("/p", "deb", "cleo.plist"), PlistSource("/p"))
}
