//go:build !linux && !darwin

package osfs

import (
	"errors"
	"os"
)

// ErrPreallocNotSupported signals that the underlying filesystem does not
// support preallocation; callers treat it as non-fatal.
var ErrPreallocNotSupported = errors.New("osfs: preallocation not supported")

func preallocate(f *os.File, size int64) error {
	return ErrPreallocNotSupported
}
