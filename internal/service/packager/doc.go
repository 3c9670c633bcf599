// Package packager turns a signed dylib into an installable .deb.
//
// It stages a throwaway tree that mirrors the device layout (DEBIAN/control,
// the MobileSubstrate directory with the dylib and its filter plist), runs
// dpkg-deb over it and removes the staging directory on every exit path.
package packager
