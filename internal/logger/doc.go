// Package logger wraps zap for cleo-build:
//   - a global sugared logger writing console-encoded lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and an atomic level toggled by --verbose and --log-level,
//   - convenience functions (Infof, DebugKV, ErrorKV, etc.).
//
// Logs go to stderr so the output of child tools (cargo, dpkg-deb, ssh)
// keeps stdout to itself.
package logger
