package compressors

import (
	"errors"
	"fmt"

	lz4 "github.com/pierrec/lz4/v4"
)

// LZ4 compresses values with the lz4 block format. A Leaf only stores
// the on-disk payload size, not the uncompressed one, and raw lz4
// blocks don't self-describe their decompressed length, so the first
// output byte is a tag distinguishing a raw (incompressible) payload
// from a compressed one, and Decompress grows its destination buffer
// and retries rather than trusting a caller-supplied size.
type LZ4 struct{}

var _ ValueCompressor = LZ4{}

const (
	lz4TagRaw        byte = 0
	lz4TagCompressed byte = 1

	lz4MaxDecompressBuffer = 16 * 1024 * 1024
)

func (LZ4) Algorithm() Algorithm { return AlgorithmLZ4 }

func (LZ4) Compress(data []byte) ([]byte, error) {
	dst := make([]byte, 1+lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst[1:], nil)
	if err != nil {
		return nil, fmt.Errorf("compressors: lz4 compress: %w", err)
	}
	if n == 0 {
		// CompressBlock reports incompressible input (including empty
		// input) by returning 0 rather than an error.
		out := make([]byte, 1+len(data))
		out[0] = lz4TagRaw
		copy(out[1:], data)
		return out, nil
	}
	dst[0] = lz4TagCompressed
	return dst[:1+n], nil
}

func (LZ4) Decompress(data []byte, expectedSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	tag, payload := data[0], data[1:]
	if tag == lz4TagRaw {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}

	dstSize := expectedSize
	if dstSize <= 0 {
		dstSize = len(payload) * 3
	}
	if dstSize < 1024 {
		dstSize = 1024
	}
	dst := make([]byte, dstSize)
	for {
		n, err := lz4.UncompressBlock(payload, dst)
		if err == nil {
			return dst[:n], nil
		}
		if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) {
			if len(dst) > lz4MaxDecompressBuffer {
				return nil, fmt.Errorf("compressors: lz4 decompress: buffer grew past %d bytes", lz4MaxDecompressBuffer)
			}
			dst = make([]byte, len(dst)*2)
			continue
		}
		return nil, fmt.Errorf("compressors: lz4 decompress: %w", err)
	}
}
