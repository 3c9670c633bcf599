package config

import (
	"errors"
	"fmt"
	"os"
)

// Environment variables consulted by the pipeline.
const (
	// EnvClang is the clang used to turn the static archive into a dylib.
	EnvClang = "CLEO_CLANG"
	// EnvIOSSDK is the iPhoneOS SDK passed to clang as -isysroot.
	EnvIOSSDK = "CLEO_IOS_SDK"
	// EnvLdid is the ldid binary used for fake-signing.
	EnvLdid = "CLEO_LDID"
	// EnvInstallHost is the device that receives the tweak.
	EnvInstallHost = "CLEO_INSTALL_HOST"
)

// ErrVariableNotSet is returned when a required environment variable is missing or empty.
var ErrVariableNotSet = errors.New("not set")

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Env resolves environment variables on demand, so a missing variable is
// only reported by the step that needs it.
type Env struct {
	lookup LookupFunc
}

// NewEnv returns an Env backed by lookup, or by the process environment when lookup is nil.
func NewEnv(lookup LookupFunc) *Env {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	return &Env{lookup: lookup}
}

// MapEnv returns an Env backed by a fixed map.
func MapEnv(values map[string]string) *Env {
	return NewEnv(func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	})
}

// Require returns the value of name or an error wrapping ErrVariableNotSet.
func (e *Env) Require(name string) (string, error) {
	v, ok := e.lookup(name)
	if !ok || v == "" {
		return "", fmt.Errorf("%s %w", name, ErrVariableNotSet)
	}

	return v, nil
}
