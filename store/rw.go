package store

import (
	"context"
	"fmt"
	"time"

	"github.com/INLOpen/urkelstore/node"
	"github.com/INLOpen/urkelstore/segment"
)

// segmentForRead returns the segment backing idx, which must lie within
// (0, currentIndex]. The current segment is served directly; any other
// is fetched through the handle cache.
func (s *Store) segmentForRead(idx uint16) (*segment.Segment, error) {
	if idx == 0 || idx > s.currentIndex {
		return nil, ErrInvalidFileIndex
	}
	if idx == s.currentIndex {
		return s.current, nil
	}
	return s.cache.GetOrOpen(idx, s.currentIndex, func(i uint16) (*segment.Segment, error) {
		return segment.Open(s.opts.FS, segmentPath(s.opts.Dir, i), i, false)
	})
}

// ReadNodeSync reads and decodes exactly one node_size block at ptr,
// blocking the calling goroutine directly (spec §4.3's synchronous
// path, used by tree traversal under a read lock).
func (s *Store) ReadNodeSync(ptr node.Pointer) (node.Node, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	seg, err := s.segmentForRead(ptr.Segment)
	if err != nil {
		return nil, err
	}
	data, err := seg.ReadSync(int64(ptr.Offset), s.codec.NodeSize())
	if err != nil {
		return nil, err
	}
	n, err := s.codec.Decode(data, ptr.Segment, ptr.Offset)
	if err != nil {
		return nil, err
	}
	s.opts.Metrics.ObserveRead(time.Since(start))
	return n, nil
}

// ReadNode is the cancellable counterpart to ReadNodeSync.
func (s *Store) ReadNode(ctx context.Context, ptr node.Pointer) (node.Node, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	seg, err := s.segmentForRead(ptr.Segment)
	if err != nil {
		return nil, err
	}
	data, err := seg.Read(ctx, int64(ptr.Offset), s.codec.NodeSize())
	if err != nil {
		return nil, err
	}
	n, err := s.codec.Decode(data, ptr.Segment, ptr.Offset)
	if err != nil {
		return nil, err
	}
	s.opts.Metrics.ObserveRead(time.Since(start))
	return n, nil
}

// ReadSync reads size raw bytes at ptr, used for value payloads and
// meta records.
func (s *Store) ReadSync(ptr node.Pointer, size int) ([]byte, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	seg, err := s.segmentForRead(ptr.Segment)
	if err != nil {
		return nil, err
	}
	return seg.ReadSync(int64(ptr.Offset), size)
}

// Read is the cancellable counterpart to ReadSync.
func (s *Store) Read(ctx context.Context, ptr node.Pointer, size int) ([]byte, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	seg, err := s.segmentForRead(ptr.Segment)
	if err != nil {
		return nil, err
	}
	return seg.Read(ctx, int64(ptr.Offset), size)
}

// ReadValue reads and, if a compressor is configured, decompresses a
// leaf's value payload.
func (s *Store) ReadValue(leaf *node.Leaf) ([]byte, error) {
	raw, err := s.ReadSync(leaf.Value, int(leaf.ValueSize))
	if err != nil {
		return nil, err
	}
	if s.opts.Compressor == nil {
		return raw, nil
	}
	// The true uncompressed length isn't recorded anywhere on disk
	// (leaf.ValueSize is the on-disk, possibly-compressed size), so
	// there's no trustworthy expectedSize to pass; compressors must
	// cope with 0.
	return s.opts.Compressor.Decompress(raw, 0)
}

// WriteNode stages n's encoded form in the write buffer and assigns it
// a (segment, offset). n must not already have a placement.
func (s *Store) WriteNode(n node.Node) (node.Pointer, error) {
	if err := s.requireOpen(); err != nil {
		return node.Pointer{}, err
	}
	if _, ok := n.Placement(); ok {
		return node.Pointer{}, fmt.Errorf("store: WriteNode: node already has a placement")
	}
	encoded, err := s.codec.Encode(n)
	if err != nil {
		return node.Pointer{}, err
	}
	s.buf.Expand(len(encoded))
	ptr := s.buf.Write(encoded)
	n.SetPlacement(ptr)
	return ptr, nil
}

// WriteValue stages value's bytes (compressed, if a compressor is
// configured) and records the resulting pointer and on-disk size on
// leaf.
func (s *Store) WriteValue(leaf *node.Leaf, value []byte) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	payload := value
	if s.opts.Compressor != nil {
		compressed, err := s.opts.Compressor.Compress(value)
		if err != nil {
			return fmt.Errorf("store: WriteValue: compress: %w", err)
		}
		payload = compressed
	}
	s.buf.Expand(len(payload))
	ptr := s.buf.Write(payload)
	leaf.Value = ptr
	leaf.ValueSize = uint32(len(payload))
	return nil
}

// WriteNull pads a full node_size block of zeros, used when the tree
// layer wants a well-known "nothing here" slot.
func (s *Store) WriteNull() error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	size := s.codec.NodeSize()
	s.buf.Expand(size)
	s.buf.Pad(size)
	return nil
}
