package store

import (
	"bytes"

	"github.com/INLOpen/urkelstore/meta"
	"github.com/INLOpen/urkelstore/node"
)

// GetRootHash returns the digest of the most recently committed root.
func (s *Store) GetRootHash() ([]byte, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	s.rootCacheMu.Lock()
	defer s.rootCacheMu.Unlock()
	out := make([]byte, len(s.rootDigest))
	copy(out, s.rootDigest)
	return out, nil
}

// GetRoot returns the most recently committed root as a Child, Resolved
// if it was loaded (or committed) this session.
func (s *Store) GetRoot() (node.Child, error) {
	if err := s.requireOpen(); err != nil {
		return node.Child{}, err
	}
	s.rootCacheMu.Lock()
	defer s.rootCacheMu.Unlock()
	return s.rootChild, nil
}

// GetHistory walks the backward meta chain looking for the commit whose
// root digest equals want, resolving each candidate root node along the
// way to compute its digest (spec §4.6). Only a standalone store tracks
// a chain; an embedded store returns ErrStandaloneOnly.
func (s *Store) GetHistory(want []byte) (node.Child, error) {
	if err := s.requireOpen(); err != nil {
		return node.Child{}, err
	}
	if !s.opts.Standalone {
		return node.Child{}, ErrStandaloneOnly
	}

	key := hexDigest(want)
	s.rootCacheMu.Lock()
	if child, ok := s.rootCache[key]; ok {
		s.rootCacheMu.Unlock()
		return child, nil
	}
	s.rootCacheMu.Unlock()

	s.readLock.Lock()
	defer s.readLock.Unlock()

	segIdx, offset := s.lastMetaSegment, s.lastMetaOffset
	for segIdx != 0 {
		rec, err := s.readMetaRecord(segIdx, offset)
		if err != nil {
			return node.Child{}, err
		}

		rootPtr := node.Pointer{Segment: rec.RootSegment, Offset: rec.RootOffset}
		var child node.Child
		if rootPtr.Segment == 0 {
			child = node.NullChild()
		} else {
			root, err := s.ReadNodeSync(rootPtr)
			if err != nil {
				return node.Child{}, err
			}
			child = node.ResolvedChild(root, s.opts.Hasher)
		}

		digest := child.Digest
		if len(digest) == 0 {
			digest = s.opts.Hasher.Zero()
		}
		if bytes.Equal(digest, want) {
			s.rootCacheMu.Lock()
			s.rootCache[key] = child
			s.rootCacheMu.Unlock()
			return child, nil
		}

		segIdx, offset = rec.PrevMetaSegment, rec.PrevMetaOffset
	}

	return node.Child{}, ErrMissingNode
}

func (s *Store) readMetaRecord(segIdx uint16, offset uint32) (meta.Record, error) {
	seg, err := s.segmentForRead(segIdx)
	if err != nil {
		return meta.Record{}, err
	}
	buf, err := seg.ReadSync(int64(offset), meta.Size)
	if err != nil {
		return meta.Record{}, err
	}
	return meta.Decode(buf, s.opts.Hasher)
}
