//go:build darwin

package osfs

import (
	"errors"
	"os"
	"unsafe"

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
	var fst unix.Fstore_t
	fst.Flags = unix.F_ALLOCATECONTIG
	fst.Posmode = unix.F_PEOFPOSMODE
	fst.Length = size
	if _, _, errno := unix.Syscall(unix.SYS_FCNTL, uintptr(fd), uintptr(unix.F_PREALLOCATE), uintptr(unsafe.Pointer(&fst))); errno == 0 {
		return nil
	}
	fst.Flags = unix.F_ALLOCATEALL
	if _, _, errno := unix.Syscall(unix.SYS_FCNTL, uintptr(fd), uintptr(unix.F_PREALLOCATE), uintptr(unsafe.Pointer(&fst))); errno == 0 {
		return nil
	}
	return ErrPreallocNotSupported
}
