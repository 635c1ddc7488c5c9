// Package osfs is the real, disk-backed implementation of storefs.FS.
//
// It is a thin wrapper over the standard library, shaped the way the
// teacher's sys package wraps os.* behind a swappable File/FileHandle
// pair -- except here the capability is passed into the store explicitly
// rather than swapped through a package-level global.
package osfs

import (
	"os"
	"sort"

	"github.com/INLOpen/urkelstore/storefs"
)

// FS is the disk-backed storefs.FS implementation.
type FS struct{}

// New returns a storefs.FS backed by the real operating system.
func New() storefs.FS { return FS{} }

func (FS) MkdirAll(dir string, perm os.FileMode) error {
	return os.MkdirAll(dir, perm)
}

func (FS) ReadDir(dir string) ([]storefs.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]storefs.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, storefs.DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (FS) Lstat(path string) (storefs.FileInfo, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return storefs.FileInfo{}, err
	}
	return storefs.FileInfo{Size: fi.Size(), Mode: fi.Mode(), ModTime: fi.ModTime()}, nil
}

func (FS) OpenFile(path string, flag int, perm os.FileMode) (storefs.Handle, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}
	return &handle{f: f}, nil
}

func (FS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }
func (FS) Unlink(path string) error             { return os.Remove(path) }
func (FS) Rmdir(path string) error              { return os.Remove(path) }

type handle struct {
	f *os.File
}

func (h *handle) ReadAt(p []byte, off int64) (int, error)  { return h.f.ReadAt(p, off) }
func (h *handle) WriteAt(p []byte, off int64) (int, error) { return h.f.WriteAt(p, off) }
func (h *handle) Write(p []byte) (int, error)               { return h.f.Write(p) }
func (h *handle) Sync() error                               { return h.f.Sync() }
func (h *handle) Truncate(size int64) error                 { return h.f.Truncate(size) }
func (h *handle) Close() error                              { return h.f.Close() }

func (h *handle) Stat() (storefs.FileInfo, error) {
	fi, err := h.f.Stat()
	if err != nil {
		return storefs.FileInfo{}, err
	}
	return storefs.FileInfo{Size: fi.Size(), Mode: fi.Mode(), ModTime: fi.ModTime()}, nil
}

// Preallocate hints the OS to reserve size bytes for f's current length,
// reducing fragmentation for large segment files. Unsupported platforms
// fall back to a no-op; see storefs/osfs/prealloc_*.go.
func Preallocate(h storefs.Handle, size int64) error {
	hh, ok := h.(*handle)
	if !ok {
		return nil
	}
	return preallocate(hh.f, size)
}
