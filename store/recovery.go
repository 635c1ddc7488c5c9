package store

import (
	"github.com/INLOpen/urkelstore/meta"
	"github.com/INLOpen/urkelstore/segment"
)

// recover establishes s.currentIndex and, in standalone mode, the
// adopted meta record's location (s.lastMetaSegment/Offset), following
// spec §4.5. indices is the sorted, already-contiguity-checked list of
// segment files on disk (empty if this is a fresh directory).
func (s *Store) recover(indices []uint16) error {
	if len(indices) == 0 {
		s.currentIndex = 1
		return nil
	}

	if !s.opts.Standalone {
		s.currentIndex = indices[len(indices)-1]
		return nil
	}

	fs := s.opts.FS
	for i := len(indices) - 1; i >= 0; i-- {
		idx := indices[i]
		seg, err := segment.Open(fs, segmentPath(s.opts.Dir, idx), idx, false)
		if err != nil {
			return err
		}

		_, offset, ok, err := meta.ScanSegment(seg, s.opts.Hasher)
		if err != nil {
			seg.Close()
			return err
		}
		if ok {
			truncateTo := int64(offset) + meta.Size
			if err := seg.Truncate(truncateTo); err != nil {
				seg.Close()
				return err
			}
			seg.Close()
			s.currentIndex = idx
			s.lastMetaSegment = idx
			s.lastMetaOffset = offset
			return nil
		}

		seg.Close()
		s.log.Warn("recovery: no valid meta in segment, unlinking", "segment", idx)
		if err := fs.Unlink(segmentPath(s.opts.Dir, idx)); err != nil {
			return err
		}
	}

	// No segment anywhere yielded a valid meta: fresh state.
	s.currentIndex = 1
	s.lastMetaSegment = 0
	s.lastMetaOffset = 0
	return nil
}
