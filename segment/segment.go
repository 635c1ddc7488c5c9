// Package segment wraps one on-disk segment file: an append handle with
// reference-counted outstanding reads (spec §4.3).
package segment

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/INLOpen/urkelstore/storefs"
)

// Segment is one open segment file. Every read increments reads for its
// duration; the handle cache vetoes eviction while reads > 0.
type Segment struct {
	Index  uint16
	handle storefs.Handle
	size   int64
	reads  atomic.Int64
}

// Open opens (creating if needed) the segment file at path under fs.
func Open(fs storefs.FS, path string, index uint16, create bool) (*Segment, error) {
	flag := os.O_RDWR
	if create {
		flag |= os.O_CREATE
	}
	h, err := fs.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, err
	}
	fi, err := h.Stat()
	if err != nil {
		h.Close()
		return nil, err
	}
	return &Segment{Index: index, handle: h, size: fi.Size}, nil
}

// Size returns the current on-disk byte length.
func (s *Segment) Size() int64 { return s.size }

// Reads returns the number of outstanding read operations.
func (s *Segment) Reads() int64 { return s.reads.Load() }

// ReadSync reads size bytes at offset, blocking the calling goroutine
// directly. It exists so that tree traversal under a read lock need not
// interleave with a suspended-task scheduler the way Read's
// context-cancellable path does.
func (s *Segment) ReadSync(offset int64, size int) ([]byte, error) {
	s.reads.Add(1)
	defer s.reads.Add(-1)
	buf := make([]byte, size)
	if _, err := s.handle.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// RawRead behaves like ReadSync but reads into a caller-supplied,
// reusable slab instead of allocating, for hot scan paths (e.g. meta
// recovery) that read the same size repeatedly.
func (s *Segment) RawRead(offset int64, size int, slab []byte) ([]byte, error) {
	s.reads.Add(1)
	defer s.reads.Add(-1)
	buf := slab
	if len(buf) < size {
		buf = make([]byte, size)
	} else {
		buf = buf[:size]
	}
	if _, err := s.handle.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read is the cancellable counterpart to ReadSync: the underlying read
// runs on a goroutine so ctx cancellation can return early, but (per
// spec) a read that has already been issued to the filesystem still
// decrements reads when it completes even if the caller gave up on it.
func (s *Segment) Read(ctx context.Context, offset int64, size int) ([]byte, error) {
	type result struct {
		buf []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		buf, err := s.ReadSync(offset, size)
		done <- result{buf, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.buf, r.err
	}
}

// Write appends data at the current end of the file and returns the
// offset it was written at. Writes are append-only and monotonically
// increasing; no region is ever rewritten except by Truncate during
// recovery.
func (s *Segment) Write(data []byte) (int64, error) {
	offset := s.size
	if _, err := s.handle.WriteAt(data, offset); err != nil {
		return 0, err
	}
	s.size += int64(len(data))
	return offset, nil
}

// Sync flushes the segment to stable storage.
func (s *Segment) Sync() error {
	return s.handle.Sync()
}

// Truncate shortens the segment to newSize, discarding any torn tail
// found during recovery.
func (s *Segment) Truncate(newSize int64) error {
	if err := s.handle.Truncate(newSize); err != nil {
		return err
	}
	s.size = newSize
	return nil
}

// Close closes the underlying handle. Callers must ensure reads == 0
// before closing; the handle cache enforces this for cached segments.
func (s *Segment) Close() error {
	return s.handle.Close()
}

// Handle exposes the raw storefs.Handle, e.g. for preallocation hints.
func (s *Segment) Handle() storefs.Handle { return s.handle }
