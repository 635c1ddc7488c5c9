// Package writebuffer implements the growable, segment-boundary-aware
// staging area a commit stages its node and value bytes into before they
// are appended to real segment files (spec §4.2).
package writebuffer

import "github.com/INLOpen/urkelstore/node"

const (
	initialCapacity = 8 * 1024
	// FlushThreshold is the accumulated staged-byte count past which a
	// commit should be triggered (spec §4.2).
	FlushThreshold = 120 * 1024 * 1024
)

// Chunk is a contiguous run of bytes destined for one segment file.
type Chunk struct {
	Segment uint16
	Data    []byte
}

// Buffer stages bytes for the current, not-yet-flushed commit. A write
// preceded by Expand never straddles two segments: Expand seals and
// rolls the buffer onto a new segment first whenever the next write
// would cross MaxFileSize. Write and Pad themselves do not check the
// segment boundary.
type Buffer struct {
	maxFileSize int64

	segment      uint16
	segmentStart uint32 // offset within segment at which b.data begins
	data         []byte
	chunks       []Chunk
	totalWritten int64
}

// New starts a buffer positioned at the given segment and the segment's
// current on-disk length (segmentStartOffset), so Position() reports
// real append offsets from the very first Write.
func New(startSegment uint16, segmentStartOffset uint32, maxFileSize int64) *Buffer {
	return &Buffer{
		maxFileSize:  maxFileSize,
		segment:      startSegment,
		segmentStart: segmentStartOffset,
	}
}

// Segment returns the segment index writes currently land in.
func (b *Buffer) Segment() uint16 { return b.segment }

// Position returns where the next Write will land.
func (b *Buffer) Position() node.Pointer {
	return node.Pointer{Segment: b.segment, Offset: b.segmentStart + uint32(len(b.data))}
}

func (b *Buffer) ensureCapacity(extra int) {
	needed := len(b.data) + extra
	if cap(b.data) >= needed {
		return
	}
	newCap := cap(b.data)
	if newCap == 0 {
		newCap = initialCapacity
	}
	for newCap < needed {
		newCap *= 2
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
}

// Expand ensures capacity for n more bytes, rolling over onto a new
// segment first if appending n bytes at the current logical position
// would cross maxFileSize. Callers must call Expand(n) before Write of
// an n-byte record that must not straddle two segments (e.g. a node
// slot); position(written) must be read only after Expand returns, so a
// node landing on the boundary is recorded at (new_segment, 0).
func (b *Buffer) Expand(n int) {
	pos := int64(b.segmentStart) + int64(len(b.data)) + int64(n)
	if pos > b.maxFileSize {
		b.sealForRollover()
	}
	b.ensureCapacity(n)
}

func (b *Buffer) sealForRollover() {
	if len(b.data) > 0 {
		b.chunks = append(b.chunks, Chunk{Segment: b.segment, Data: cloneBytes(b.data)})
	}
	b.data = b.data[:0]
	b.segment++
	b.segmentStart = 0
}

// Write appends data to the current chunk and returns the position it
// was written at.
func (b *Buffer) Write(data []byte) node.Pointer {
	b.ensureCapacity(len(data))
	pos := b.Position()
	b.data = append(b.data, data...)
	b.totalWritten += int64(len(data))
	return pos
}

// Pad appends n zero bytes.
func (b *Buffer) Pad(n int) {
	if n <= 0 {
		return
	}
	b.ensureCapacity(n)
	b.data = append(b.data, make([]byte, n)...)
	b.totalWritten += int64(n)
}

// NeedsFlush reports whether the buffer has staged enough bytes that a
// commit should be triggered soon.
func (b *Buffer) NeedsFlush() bool {
	return b.totalWritten >= FlushThreshold
}

// Flush returns the sequence of (segment, bytes) chunks accumulated
// since the last Flush, including whatever is still open in the current
// chunk, and resets staging state. The caller is responsible for
// appending each chunk's bytes to its segment file in order.
func (b *Buffer) Flush() []Chunk {
	if len(b.data) > 0 {
		b.chunks = append(b.chunks, Chunk{Segment: b.segment, Data: cloneBytes(b.data)})
		b.segmentStart += uint32(len(b.data))
		b.data = b.data[:0]
	}
	out := b.chunks
	b.chunks = nil
	b.totalWritten = 0
	return out
}

func cloneBytes(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
