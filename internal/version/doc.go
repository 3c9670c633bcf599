// Package version exposes build metadata of cleo-build.
//
// Version, Commit and BuildTime are injected through -ldflags when the
// binary is released and keep placeholder values for local builds. The same
// version string is stamped into every build record.
package version
