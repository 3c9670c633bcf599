// Package lock keeps two cleo-build runs from writing the same target
// directory at once.
//
// The lock is a marker file holding the owner's PID. A marker whose PID no
// longer names a running process is treated as stale and replaced.
package lock
