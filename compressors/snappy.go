package compressors

import (
	"fmt"

	"github.com/golang/snappy"
)

// Snappy compresses values with the snappy block format.
type Snappy struct{}

var _ ValueCompressor = Snappy{}

func (Snappy) Algorithm() Algorithm { return AlgorithmSnappy }

func (Snappy) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (Snappy) Decompress(data []byte, expectedSize int) ([]byte, error) {
	dst := make([]byte, 0, expectedSize)
	out, err := snappy.Decode(dst, data)
	if err != nil {
		return nil, fmt.Errorf("compressors: snappy decode: %w", err)
	}
	return out, nil
}
