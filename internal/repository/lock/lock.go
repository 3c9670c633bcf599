package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/cleo-build/internal/logger"
)

// MarkerFilename is created inside the cargo target directory.
const MarkerFilename = ".cleo-build.lock"

const (
	markerFileMode os.FileMode = 0o644

	maxAttempts     = 3
	unreadableGrace = 5 * time.Second
)

// ErrLocked is returned when another live cleo-build owns the marker.
var ErrLocked = errors.New("another cleo-build is running")

// ProcessFinder reports whether a process with the given PID exists.
type ProcessFinder func(pid int) (bool, error)

// Lock is an acquired marker. Release it when the run is over.
type Lock struct {
	path string
}

// Locker creates locks inside a directory.
type Locker struct {
	dir    string
	pid    int
	finder ProcessFinder
}

// NewLocker returns a Locker for dir owned by the current process.
func NewLocker(dir string) *Locker {
	return &Locker{
		dir:    dir,
		pid:    os.Getpid(),
		finder: processExists,
	}
}

// WithProcessFinder replaces the liveness check.
func (l *Locker) WithProcessFinder(finder ProcessFinder) *Locker {
	l.finder = finder
	return l
}

// WithPID overrides the PID written into the marker.
func (l *Locker) WithPID(pid int) *Locker {
	l.pid = pid
	return l
}

// Path is the marker location.
func (l *Locker) Path() string {
	return filepath.Join(l.dir, MarkerFilename)
}

// Acquire creates the marker exclusively. A marker owned by a dead process,
// or one that has held no PID for longer than unreadableGrace, is removed and
// creation is retried.
func (l *Locker) Acquire(ctx context.Context) (*Lock, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	path := l.Path()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		created, err := l.create(path)
		if err != nil {
			return nil, err
		}

		if created {
			return &Lock{path: path}, nil
		}

		owner, err := readOwner(path)

		switch {
		case errors.Is(err, os.ErrNotExist):
			// Released between our attempt and the read.
			continue
		case err != nil:
			if !unreadableExpired(path) {
				return nil, fmt.Errorf("%w (marker %s is being written)", ErrLocked, path)
			}

			logger.WarnKV(ctx, "Unreadable lock marker, replacing it", "path", path, "error", err)
		case owner == l.pid:
			// Re-entrant acquisition by the same process.
			return &Lock{path: path}, nil
		default:
			alive, findErr := l.finder(owner)
			if findErr != nil {
				return nil, fmt.Errorf("look up lock owner %d: %w", owner, findErr)
			}

			if alive {
				return nil, fmt.Errorf("%w (pid %d, marker %s)", ErrLocked, owner, path)
			}

			logger.InfoKV(ctx, "Removing stale lock marker", "path", path, "pid", owner)
		}

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock marker: %w", err)
		}
	}

	return nil, fmt.Errorf("%w (marker %s keeps reappearing)", ErrLocked, path)
}

// create writes the marker if none exists. It reports false when another
// process got there first.
func (l *Locker) create(path string) (bool, error) {
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerFileMode)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("create lock marker: %w", err)
	}

	_, err = f.WriteString(strconv.Itoa(l.pid) + "\n")
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("write lock marker: %w", err)
	}

	return true, nil
}

// unreadableExpired tells a marker abandoned without a PID from one whose
// owner has not finished writing it yet.
func unreadableExpired(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}

	return time.Since(info.ModTime()) > unreadableGrace
}

// Release removes the marker. Releasing twice is harmless.
func (k *Lock) Release() error {
	if k == nil {
		return nil
	}

	if err := os.Remove(k.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock marker: %w", err)
	}

	return nil
}

func readOwner(path string) (int, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, fmt.Errorf("parse pid: %w", err)
	}

	return pid, nil
}

// processExists asks the process table whether pid is alive.
func processExists(pid int) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	return process != nil, nil
}
