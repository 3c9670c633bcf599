package layout

import (
	"path"
	"path/filepath"
)

const (
	// DebDir holds the control files and the filter plist inside the project.
	DebDir = "deb"
	// PlistFilename is the MobileSubstrate filter plist inside DebDir.
	PlistFilename = "cleo.plist"
	// ControlDir is the package metadata directory inside a staged tree.
	ControlDir = "DEBIAN"
	// ControlFilename is the name dpkg-deb expects inside ControlDir.
	ControlFilename = "control"

	// substrateDir is where MobileSubstrate loads tweaks from.
	substrateDir = "Library/MobileSubstrate/DynamicLibraries"
	// rootlessPrefix is the jailbreak root on rootless devices.
	rootlessPrefix = "var/jb"

	profileRelease = "release"
	profileDebug   = "debug"
)

// Scheme selects one of the two install layouts on the device.
type Scheme bool

const (
	// Rootful installs into the real root filesystem.
	Rootful Scheme = false
	// Rootless installs below /var/jb.
	Rootless Scheme = true
)

// String returns "rootless" or "rootful".
func (s Scheme) String() string {
	if s == Rootless {
		return "rootless"
	}

	return "rootful"
}

// Profile returns the cargo profile directory name.
func Profile(release bool) string {
	if release {
		return profileRelease
	}

	return profileDebug
}

// OutputDir is where cargo leaves the artifacts of the selected profile.
func OutputDir(projectDir, target string, release bool) string {
	return filepath.Join(projectDir, "target", target, Profile(release))
}

// TargetDir is the cargo target directory of the project.
func TargetDir(projectDir string) string {
	return filepath.Join(projectDir, "target")
}

// Archive is the static library produced by a staticlib build.
func Archive(outputDir, crate string) string {
	return filepath.Join(outputDir, "lib"+crate+".a")
}

// Dylib is the dynamic library the rest of the pipeline consumes.
func Dylib(outputDir, crate string) string {
	return filepath.Join(outputDir, "lib"+crate+".dylib")
}

// DebName is the package filename for the scheme.
func DebName(s Scheme) string {
	return "cleo." + s.String() + ".deb"
}

// DebPath is the package location inside the output directory.
func DebPath(outputDir string, s Scheme) string {
	return filepath.Join(outputDir, DebName(s))
}

// ControlSource is the control file variant for the scheme.
func ControlSource(projectDir string, s Scheme) string {
	return filepath.Join(projectDir, DebDir, ControlFilename+"."+s.String())
}

// PlistSource is the filter plist shipped with every build.
func PlistSource(projectDir string) string {
	return filepath.Join(projectDir, DebDir, PlistFilename)
}

// SubstrateDir is the tweak directory relative to the package root.
func SubstrateDir(s Scheme) string {
	if s == Rootless {
		return path.Join(rootlessPrefix, substrateDir)
	}

	return substrateDir
}

// RemoteStem is the absolute device path of the tweak without extension.
// Both the .dylib and the .plist are derived from it.
func RemoteStem(s Scheme, product string) string {
	return "/" + path.Join(SubstrateDir(s), product)
}
