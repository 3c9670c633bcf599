// Package dylib inspects the library produced by cargo or clang before it is
// signed and shipped, so a wrong crate-type or architecture is caught on the
// build machine instead of crashing the target process on the device.
package dylib
