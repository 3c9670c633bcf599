package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the project settings of a cleo-build run.
// Tool locations are not part of it, they come from the environment (see Env).
type Config struct {
	// ProjectDir is the root of the CLEO crate. Relative paths are resolved against it.
	ProjectDir string `yaml:"project_dir"`
	// Target is the Rust target triple passed to cargo.
	Target string `yaml:"target"`
	// Crate is the library name; artifacts are lib<Crate>.a and lib<Crate>.dylib.
	Crate string `yaml:"crate"`
	// Product is the file stem installed on the device (CLEO.dylib, CLEO.plist).
	Product string `yaml:"product"`
	// LinkTarget is the clang -target value used when linking the static archive.
	LinkTarget string `yaml:"link_target"`
	// Frameworks are linked into the dylib with -framework.
	Frameworks []string `yaml:"frameworks"`
	// Compression is the dpkg-deb compressor.
	Compression string `yaml:"compression"`
	// RemoteUser is the account used for scp and ssh.
	RemoteUser string `yaml:"remote_user"`
	// RemotePackagePath is where the .deb is uploaded before dpkg -i.
	RemotePackagePath string `yaml:"remote_package_path"`
}

const (
	// DefaultConfigFilename is the optional per-project settings file.
	DefaultConfigFilename = "cleo-build.yaml"

	// DefaultTarget is the only target CLEO ships for.
	DefaultTarget = "aarch64-apple-ios"

	// DefaultCrate is the library crate name.
	DefaultCrate = "cleo"

	// DefaultProduct is the installed file stem.
	DefaultProduct = "CLEO"

	// DefaultLinkTarget is the clang target for the shared library.
	DefaultLinkTarget = "arm64-apple-darwin"

	// DefaultCompression is the compressor handed to dpkg-deb -Z.
	DefaultCompression = "xz"

	// DefaultRemoteUser is the account on the jailbroken device.
	DefaultRemoteUser = "root"

	// DefaultRemotePackagePath is the upload location of the .deb on the device.
	DefaultRemotePackagePath = "/tmp/cleo.deb"

	// DefaultFilePermissions is the default file permission for generated files.
	DefaultFilePermissions = 0o644
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnsupportedCompression is returned for compressors dpkg-deb does not know.
	errUnsupportedCompression = errors.New("unsupported compression")
	// errRemotePathNotAbsolute is returned when the upload path is relative.
	errRemotePathNotAbsolute = errors.New("remote package path must be absolute")
)

// DefaultFrameworks returns the frameworks CLEO links against.
func DefaultFrameworks() []string {
	return []string{"CoreFoundation", "Security"}
}

// New returns a Config with every default filled in.
func New(projectDir string) *Config {
	cfg := &Config{ProjectDir: projectDir}

	// Defaults never fail validation.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from path and validates it.
// A missing file is not an error when optional is set: defaults are returned instead.
func Load(path string, optional bool) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the fields that have a fixed vocabulary.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Target == "" {
		cfg.Target = DefaultTarget
	}

	if cfg.Crate == "" {
		cfg.Crate = DefaultCrate
	}

	if cfg.Product == "" {
		cfg.Product = DefaultProduct
	}

	if cfg.LinkTarget == "" {
		cfg.LinkTarget = DefaultLinkTarget
	}

	if len(cfg.Frameworks) == 0 {
		cfg.Frameworks = DefaultFrameworks()
	}

	if cfg.RemoteUser == "" {
		cfg.RemoteUser = DefaultRemoteUser
	}

	if cfg.RemotePackagePath == "" {
		cfg.RemotePackagePath = DefaultRemotePackagePath
	}

	if !strings.HasPrefix(cfg.RemotePackagePath, "/") {
		return fmt.Errorf("%q: %w", cfg.RemotePackagePath, errRemotePathNotAbsolute)
	}

	if cfg.Compression == "" {
		cfg.Compression = DefaultCompression
	}

	switch cfg.Compression {
	case "xz", "gzip", "zstd", "none":
	default:
		return fmt.Errorf("%q: %w", cfg.Compression, errUnsupportedCompression)
	}

	return nil
}
