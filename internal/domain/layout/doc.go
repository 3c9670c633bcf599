// Package layout derives every path the pipeline touches: cargo output
// directories, the produced libraries, the packaging inputs under deb/ and
// the MobileSubstrate locations for rootful and rootless devices.
//
// Nothing here touches the filesystem.
package layout
