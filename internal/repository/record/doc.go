// Package record persists a small YAML receipt next to the artifacts of
// every successful build: who built what, when, with which checksum, and
// where it was installed. The plan command reads it back to show the
// previous build of a profile.
package record
