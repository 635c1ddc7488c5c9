//go:build linux

package osfs

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// ErrPreallocNotSupported signals that the underlying filesystem does not
// support preallocation; callers treat it as non-fatal.
var ErrPreallocNotSupported = errors.New("osfs: preallocation not supported")

func preallocate(f *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	fd := int(f.Fd())
	if err := unix.Fallocate(fd, unix.FALLOC_FL_KEEP_SIZE, 0, size); err == nil {
		return nil
	}
	return ErrPreallocNotSupported
}
