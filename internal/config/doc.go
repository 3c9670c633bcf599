// Package config defines the project settings of cleo-build and provides
// helpers to load, validate and save them in YAML format.
//
// Tool paths (clang, SDK, ldid) and the install host are not stored in the
// file. They are read from CLEO_* environment variables through Env, and
// only at the moment a step needs them.
package config
