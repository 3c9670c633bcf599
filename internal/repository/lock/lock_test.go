package lock

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedFinder(alive bool) ProcessFinder {
	return func(int) (bool, error) {
		return alive, nil
	}
}

// TestAcquireRelease creates and removes the marker.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	locker := NewLocker(t.TempDir()).WithPID(4242)

	lock, err := locker.Acquire(context.Background())
	require.NoError(t, err)

	contents, err := os.ReadFile(locker.Path())
	require.NoError(t, err)
	require.Equal(t, "4242\n", string(contents))

	require.NoError(t, lock.Release())
	require.NoFileExists(t, locker.Path())
	require.NoError(t, lock.Release())
}

// TestAcquireHeldByLiveProcess refuses to run next to another build.
func TestAcquireHeldByLiveProcess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := NewLocker(dir).WithPID(100).Acquire(context.Background())
	require.NoError(t, err)

	_, err = NewLocker(dir).WithPID(200).WithProcessFinder(fixedFinder(true)).Acquire(context.Background())
	require.ErrorIs(t, err, ErrLocked)
}

// TestAcquireStale replaces a marker left by a dead process.
func TestAcquireStale(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := NewLocker(dir).WithPID(100).Acquire(context.Background())
	require.NoError(t, err)

	locker := NewLocker(dir).WithPID(200).WithProcessFinder(fixedFinder(false))

	_, err = locker.Acquire(context.Background())
	require.NoError(t, err)

	contents, err := os.ReadFile(locker.Path())
	require.NoError(t, err)
	require.Equal(t, "200\n", string(contents))
}

// TestAcquireGarbageMarker replaces an old marker that does not hold a PID
// but backs off while a fresh one may still be written by its owner.
func TestAcquireGarbageMarker(t *testing.T) {
	t.Parallel()

	locker := NewLocker(t.TempDir()).WithPID(300)
	require.NoError(t, os.WriteFile(locker.Path(), nil, 0o600))

	_, err := locker.Acquire(context.Background())
	require.ErrorIs(t, err, ErrLocked)

	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.WriteFile(locker.Path(), []byte("not a pid"), 0o600))
	require.NoError(t, os.Chtimes(locker.Path(), old, old))

	_, err = locker.Acquire(context.Background())
	require.NoError(t, err)

	contents, err := os.ReadFile(locker.Path())
	require.NoError(t, err)
	require.Equal(t, "300\n", string(contents))
}

// TestAcquireReentrant hands the marker back to its own process.
func TestAcquireReentrant(t *testing.T) {
	t.Parallel()

	locker := NewLocker(t.TempDir()).WithPID(500).WithProcessFinder(fixedFinder(true))

	_, err := locker.Acquire(context.Background())
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background())
	require.NoError(t, err)
}

// TestAcquireConcurrent lets exactly one of several simultaneous builds win.
func TestAcquireConcurrent(t *testing.T) {
	t.Parallel()

	const builds = 16

	dir := t.TempDir()

	var (
		wg       sync.WaitGroup
		acquired atomic.Int32
		locked   atomic.Int32
	)

	start := make(chan struct{})

	for i := 0; i < builds; i++ {
		wg.Add(1)

		go func(pid int) {
			defer wg.Done()

			<-start

			_, err := NewLocker(dir).WithPID(pid).WithProcessFinder(fixedFinder(true)).Acquire(context.Background())

			switch {
			case err == nil:
				acquired.Add(1)
			case errors.Is(err, ErrLocked):
				locked.Add(1)
			}
		}(1000 + i)
	}

	close(start)
	wg.Wait()

	require.Equal(t, int32(1), acquired.Load())
	require.Equal(t, int32(builds-1), locked.Load())
}

// TestProcessExists checks the go-ps backed lookup against this test process.
func TestProcessExists(t *testing.T) {
	t.Parallel()

	alive, err := processExists(os.Getpid())
	if err != nil {
		t.Skipf("process table unavailable: %v", err)
	}

	require.True(t, alive, strconv.Itoa(os.Getpid()))
}
