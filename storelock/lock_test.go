package storelock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/INLOpen/urkelstore/storefs/memfs"
)

func TestAcquireAndRelease(t *testing.T) {
	fs := memfs.New()
	h, err := Acquire(fs, "/db/LOCK", 1234, time.Minute)
	require.NoError(t, err)
	require.NoError(t, h.Release())

	// Released locks can be reacquired immediately.
	h2, err := Acquire(fs, "/db/LOCK", 5678, time.Minute)
	require.NoError(t, err)
	require.NoError(t, h2.Release())
}

func TestAcquireFailsWhileHeld(t *testing.T) {
	fs := memfs.New()
	h, err := Acquire(fs, "/db/LOCK", 1, time.Minute)
	require.NoError(t, err)
	defer h.Release()

	_, err = Acquire(fs, "/db/LOCK", 2, time.Minute)
	require.Error(t, err)
}

func TestAcquireBreaksStaleLock(t *testing.T) {
	fs := memfs.New()
	h, err := Acquire(fs, "/db/LOCK", 1, time.Millisecond)
	require.NoError(t, err)
	_ = h

	time.Sleep(5 * time.Millisecond)

	h2, err := Acquire(fs, "/db/LOCK", 2, time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, h2.Release())
}

func TestReleaseAfterStaleBreakIsNoop(t *testing.T) {
	fs := memfs.New()
	h, err := Acquire(fs, "/db/LOCK", 1, time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	h2, err := Acquire(fs, "/db/LOCK", 2, time.Millisecond)
	require.NoError(t, err)

	// h's lock was broken out from under it; releasing it must not
	// disturb h2's lock.
	require.NoError(t, h.Release())
	require.NoError(t, h2.Release())
}
