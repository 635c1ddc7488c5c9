package meta

import (
	"github.com/INLOpen/urkelstore/hashcap"
	"github.com/INLOpen/urkelstore/segment"
)

// ScanSegment walks seg backward from its last Size-aligned slot,
// looking for the highest-offset valid meta record. It tolerates a
// torn trailing write: bytes past the last complete, checksummed
// record are simply never inspected. It returns ok=false, with no
// error, if the segment holds no valid meta record at all.
//
// The scan keeps a single slab buffer spanning [bufLow, bufLow+len(buf))
// and refreshes it backward whenever the candidate offset falls below
// bufLow, so every 36-byte candidate is always read as one contiguous,
// fully-buffered window and never split across a slab boundary.
func ScanSegment(seg *segment.Segment, hasher hashcap.Hasher) (Record, uint32, bool, error) {
	fileSize := seg.Size()
	if fileSize < Size {
		return Record{}, 0, false, nil
	}

	lastAligned := (fileSize / Size) * Size
	pos := lastAligned - Size

	var buf []byte
	var bufLow int64

	for pos >= 0 {
		if buf == nil || pos < bufLow {
			low := pos - int64(SlabSize) + Size
			if low < 0 {
				low = 0
			}
			// Align low down to a Size boundary so every candidate in
			// range sits at a fixed offset within buf.
			low = (low / Size) * Size
			n := int(pos + Size - low)
			b, err := seg.ReadSync(low, n)
			if err != nil {
				return Record{}, 0, false, err
			}
			buf = b
			bufLow = low
		}

		start := pos - bufLow
		candidate := buf[start : start+Size]
		if rec, err := Decode(candidate, hasher); err == nil {
			return rec, uint32(pos), true, nil
		}

		pos -= Size
	}

	return Record{}, 0, false, nil
}
