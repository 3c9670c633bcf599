package record

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

// Filename is the receipt name inside the cargo output directory.
const Filename = "cleo-build.yaml"

// ChecksumFunction hashes the signed dylib.
const ChecksumFunction crypto.Hash = crypto.SHA512

const fileMode os.FileMode = 0o644

var (
	// ErrNotFound is returned when no receipt exists yet.
	ErrNotFound = errors.New("build record not found")

	errHashUnavailable = errors.New("hash function unavailable")
)

// Actor identifies who ran the build.
type Actor struct {
	Hostname string `yaml:"hostname"`
	Username string `yaml:"username"`
}

// Record describes one finished pipeline run.
type Record struct {
	// Tool is the cleo-build version that produced the artifacts.
	Tool string `yaml:"tool"`
	// FinishedAt is the UTC completion time.
	FinishedAt time.Time `yaml:"finished_at"`
	// Actor is the local host and user.
	Actor *Actor `yaml:"actor,omitempty"`
	// Profile is "release" or "debug".
	Profile string `yaml:"profile"`
	// Scheme is "rootless" or "rootful".
	Scheme string `yaml:"scheme"`
	// Dylib is the signed library path.
	Dylib string `yaml:"dylib"`
	// DylibSHA512 is the base64 checksum of the signed library.
	DylibSHA512 string `yaml:"dylib_sha512"`
	// Package is the .deb path when one was built.
	Package string `yaml:"package,omitempty"`
	// InstalledTo is the device host when the tweak was deployed.
	InstalledTo string `yaml:"installed_to,omitempty"`
}

// Repository defines persistence operations for build records.
type Repository interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record) error
}

// FileRepository stores a record as YAML on disk.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository returns a repository for the receipt inside outputDir.
func NewFileRepository(outputDir string) *FileRepository {
	return &FileRepository{
		path: filepath.Join(filepath.Clean(outputDir), Filename),
	}
}

// Path is the receipt location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read build record: %w", err)
	}

	var rec Record
	if err = yaml.Unmarshal(contents, &rec); err != nil {
		return nil, fmt.Errorf("decode build record: %w", err)
	}

	return &rec, nil
}

// Save writes the record to disk.
func (r *FileRepository) Save(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode build record: %w", err)
	}

	if err = os.WriteFile(r.path, data, fileMode); err != nil {
		return fmt.Errorf("write build record: %w", err)
	}

	return nil
}

// Checksum returns the base64 SHA-512 of the file at path.
func Checksum(path string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	if !ChecksumFunction.Available() {
		return "", fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := ChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}

// DetectActor gathers host and user information.
func DetectActor() (*Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
