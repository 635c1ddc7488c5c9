package store

import (
	"context"
	"fmt"
	"time"

	"github.com/INLOpen/urkelstore/meta"
	"github.com/INLOpen/urkelstore/node"
	"github.com/INLOpen/urkelstore/segment"
	"github.com/INLOpen/urkelstore/storefs/osfs"
)

// Commit flushes every node and value staged since the last Commit to
// their segment files, and, for a standalone store, appends a meta
// record pointing at root and fsyncs. root must either be nil (the
// tree is now empty) or a node already assigned a placement via
// WriteNode. It returns the new root digest.
func (s *Store) Commit(ctx context.Context, root node.Node) ([]byte, error) {
	_, span := s.opts.Tracer.Start(ctx, "Store.Commit")
	defer span.End()

	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state = StateCommitting
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.state = StateOpen
		s.mu.Unlock()
	}()

	start := time.Now()

	var rootPtr node.Pointer
	var rootChild node.Child
	if root == nil {
		rootChild = node.NullChild()
	} else {
		ptr, ok := root.Placement()
		if !ok {
			return nil, fmt.Errorf("store: Commit: root has no placement, call WriteNode first")
		}
		rootPtr = ptr
		rootChild = node.ResolvedChild(root, s.opts.Hasher)
	}
	rootDigest := rootChild.Digest
	if len(rootDigest) == 0 {
		rootDigest = s.opts.Hasher.Zero()
	}

	var metaBytes []byte
	var metaPos node.Pointer
	if s.opts.Standalone {
		s.padToMetaAlignment()
		rec := meta.Record{
			PrevMetaSegment: s.lastMetaSegment,
			PrevMetaOffset:  s.lastMetaOffset,
			RootSegment:     rootPtr.Segment,
			RootOffset:      rootPtr.Offset,
		}
		metaBytes = meta.Encode(rec, s.opts.Hasher)
		s.buf.Expand(len(metaBytes))
		metaPos = s.buf.Position()
		s.buf.Write(metaBytes)
	}

	chunks := s.buf.Flush()
	opened := make(map[uint16]*segment.Segment)
	var bytesWritten int64
	for _, chunk := range chunks {
		seg, err := s.writableSegment(chunk.Segment, opened)
		if err != nil {
			return nil, fmt.Errorf("store: commit: open segment %d: %w", chunk.Segment, err)
		}
		if _, err := seg.Write(chunk.Data); err != nil {
			return nil, fmt.Errorf("store: commit: write segment %d: %w", chunk.Segment, err)
		}
		bytesWritten += int64(len(chunk.Data))
	}

	if err := s.current.Sync(); err != nil {
		return nil, fmt.Errorf("store: commit: sync current segment: %w", err)
	}
	for idx, seg := range opened {
		if idx == s.currentIndex {
			continue
		}
		if err := seg.Sync(); err != nil {
			return nil, fmt.Errorf("store: commit: sync segment %d: %w", idx, err)
		}
	}

	newIndex := s.buf.Segment()
	if newIndex != s.currentIndex {
		newCurrent, ok := opened[newIndex]
		if !ok {
			return nil, &AssertionError{Msg: "commit rolled over but target segment was never opened"}
		}
		delete(opened, newIndex)
		oldCurrent := s.current
		s.current = newCurrent
		s.currentIndex = newIndex
		if err := oldCurrent.Close(); err != nil {
			s.log.Warn("commit: closing rolled-over segment", "error", err)
		}
	}
	for idx, seg := range opened {
		if err := seg.Close(); err != nil {
			s.log.Warn("commit: closing written segment", "segment", idx, "error", err)
		}
	}

	if s.opts.Standalone {
		s.lastMetaSegment = metaPos.Segment
		s.lastMetaOffset = metaPos.Offset
	}

	s.rootCacheMu.Lock()
	s.rootChild = rootChild
	s.rootDigest = rootDigest
	if s.opts.Standalone {
		s.rootCache[hexDigest(rootDigest)] = rootChild
	}
	s.rootCacheMu.Unlock()

	s.opts.Metrics.ObserveCommit(time.Since(start), bytesWritten+int64(len(metaBytes)))
	return rootDigest, nil
}

// writableSegment returns the segment to append chunk data destined for
// idx to, opening (and preallocating) it on first use within this
// commit. opened tracks segments this call has already opened so a
// commit spanning several rollovers reuses one handle per segment.
func (s *Store) writableSegment(idx uint16, opened map[uint16]*segment.Segment) (*segment.Segment, error) {
	if idx == s.currentIndex {
		return s.current, nil
	}
	if seg, ok := opened[idx]; ok {
		return seg, nil
	}
	seg, err := segment.Open(s.opts.FS, segmentPath(s.opts.Dir, idx), idx, true)
	if err != nil {
		return nil, err
	}
	if s.opts.MaxFileSize > 0 {
		_ = osfs.Preallocate(seg.Handle(), s.opts.MaxFileSize)
	}
	opened[idx] = seg
	return seg, nil
}

// padToMetaAlignment pads the write buffer so the meta record about to
// be written lands at an offset that is a multiple of meta.Size: the
// backward slab scan (meta.ScanSegment) only ever inspects Size-aligned
// windows, so an unaligned meta record would be invisible to recovery.
func (s *Store) padToMetaAlignment() {
	before := s.buf.Position()
	rem := int(before.Offset % meta.Size)
	if rem == 0 {
		return
	}
	pad := meta.Size - rem
	s.buf.Expand(pad)
	if after := s.buf.Position(); after.Segment != before.Segment {
		// Expand rolled the buffer onto a fresh segment, which starts at
		// offset 0 -- already aligned, so no padding is needed after all.
		return
	}
	s.buf.Pad(pad)
}
