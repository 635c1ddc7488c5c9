// Package meta implements the 36-byte checkpoint record and the
// backward slab scan used to recover the live root after an unclean
// shutdown (spec §3.3, §4.5).
package meta

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/INLOpen/urkelstore/hashcap"
)

const (
	// Magic is the constant 4-byte little-endian header every meta
	// record begins with.
	Magic uint32 = 0x6d726b6c
	// Size is the fixed on-disk width of a meta record.
	Size = 36
	// headerSize is the portion of Size that is checksummed.
	headerSize = 16
	// checksumSize is the number of digest bytes stored and verified.
	checksumSize = 20
	// ReadBufferSize approximates 1MiB; the actual slab size is the
	// largest multiple of Size not exceeding it.
	ReadBufferSize = 1 << 20
)

// SlabSize is the backward-scan window size: the largest multiple of
// Size not exceeding ReadBufferSize.
var SlabSize = (ReadBufferSize / Size) * Size

// ErrInvalidMagic is returned when a candidate 36-byte window does not
// begin with Magic.
var ErrInvalidMagic = errors.New("meta: invalid magic")

// ErrInvalidChecksum is returned when a candidate's checksum does not
// authenticate its header.
var ErrInvalidChecksum = errors.New("meta: invalid checksum")

// Record is a parsed, verified checkpoint.
type Record struct {
	PrevMetaSegment uint16
	PrevMetaOffset  uint32
	RootSegment     uint16
	RootOffset      uint32
}

// Encode renders r as a Size-byte meta record, computing its checksum
// with hasher.
func Encode(r Record, hasher hashcap.Hasher) []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], r.PrevMetaSegment)
	binary.LittleEndian.PutUint32(buf[6:10], r.PrevMetaOffset)
	binary.LittleEndian.PutUint16(buf[10:12], r.RootSegment)
	binary.LittleEndian.PutUint32(buf[12:16], r.RootOffset)

	sum := hasher.Digest(buf[:headerSize])
	copy(buf[headerSize:Size], sum[:checksumSize])
	return buf
}

// Decode parses and verifies a Size-byte candidate. A meta record
// "parses successfully iff digest(header[0:16])[0:20] == checksum"
// (spec invariant 4).
func Decode(data []byte, hasher hashcap.Hasher) (Record, error) {
	if len(data) != Size {
		return Record{}, fmt.Errorf("meta: decode expects %d bytes, got %d", Size, len(data))
	}
	if binary.LittleEndian.Uint32(data[0:4]) != Magic {
		return Record{}, ErrInvalidMagic
	}

	header := data[:headerSize]
	checksum := data[headerSize:Size]
	expected := hasher.Digest(header)
	if len(expected) < checksumSize {
		return Record{}, fmt.Errorf("meta: hasher digest size %d below required %d", len(expected), checksumSize)
	}
	for i := 0; i < checksumSize; i++ {
		if checksum[i] != expected[i] {
			return Record{}, ErrInvalidChecksum
		}
	}

	return Record{
		PrevMetaSegment: binary.LittleEndian.Uint16(data[4:6]),
		PrevMetaOffset:  binary.LittleEndian.Uint32(data[6:10]),
		RootSegment:     binary.LittleEndian.Uint16(data[10:12]),
		RootOffset:      binary.LittleEndian.Uint32(data[12:16]),
	}, nil
}
