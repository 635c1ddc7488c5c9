package compressors

// None performs no compression; Compress returns data unchanged.
type None struct{}

var _ ValueCompressor = None{}

func (None) Algorithm() Algorithm { return AlgorithmNone }

func (None) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (None) Decompress(data []byte, expectedSize int) ([]byte, error) {
	return data, nil
}
