// Package compressors implements optional compression of leaf value
// payloads (spec SPEC_FULL §3.6). Node slots are fixed-width and are
// never compressed; only the value bytes a leaf points at are.
package compressors

import "fmt"

// Algorithm identifies a ValueCompressor implementation, mirroring the
// byte-tag convention the codec package uses for node variants.
type Algorithm byte

const (
	AlgorithmNone   Algorithm = 0
	AlgorithmSnappy Algorithm = 1
	AlgorithmLZ4    Algorithm = 2
)

// ValueCompressor compresses and decompresses leaf value payloads.
// expectedSize is a best-effort sizing hint for the decompression
// buffer, not a trusted value: callers generally have no record of the
// true uncompressed length (a Leaf only stores the on-disk size) and
// pass 0 when it isn't known. Implementations must be able to decode
// correctly with expectedSize == 0.
type ValueCompressor interface {
	Algorithm() Algorithm
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte, expectedSize int) ([]byte, error)
}

// ByName returns the ValueCompressor for a config string, as used by
// config.CompressionConfig.Algorithm.
func ByName(name string) (ValueCompressor, error) {
	switch name {
	case "", "none":
		return None{}, nil
	case "snappy":
		return Snappy{}, nil
	case "lz4":
		return LZ4{}, nil
	default:
		return nil, fmt.Errorf("compressors: unknown algorithm %q", name)
	}
}
