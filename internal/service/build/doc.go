// Package build runs the cleo-build pipeline: cargo build, link (when the
// toolchain cannot emit a dylib), inspect, sign, package and install.
//
// Steps run strictly one after another. The first failure stops the run and
// no later step executes. Tool paths are resolved from the environment
// right before the step that uses them.
package build
