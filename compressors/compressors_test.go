package compressors_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/INLOpen/urkelstore/compressors"
)

func allCompressors() []compressors.ValueCompressor {
	return []compressors.ValueCompressor{
		compressors.None{},
		compressors.Snappy{},
		compressors.LZ4{},
	}
}

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("hello world"),
		bytes.Repeat([]byte("a"), 4096),
		[]byte("82f7b5a3e1d9c0f4b8a6d2c1e0f3a9b8d7c6e5f4a3b2c1d0e9f8a7b6c5d4e3f2"),
	}
	for _, c := range allCompressors() {
		for _, data := range cases {
			compressed, err := c.Compress(data)
			require.NoError(t, err)
			decompressed, err := c.Decompress(compressed, len(data))
			require.NoError(t, err)
			require.True(t, bytes.Equal(data, decompressed))
		}
	}
}

// TestRoundTripUnknownSize exercises the real call shape: a store never
// records the true uncompressed length, so Decompress is always given
// expectedSize 0 and must still recover the original bytes, including
// for inputs large enough to force LZ4's grow-and-retry loop to grow
// its buffer at least once past the default guess.
func TestRoundTripUnknownSize(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("hello world"),
		bytes.Repeat([]byte("a"), 4096),
		bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 20000),
		randomBytes(t, 2048),
	}
	for _, c := range allCompressors() {
		for _, data := range cases {
			compressed, err := c.Compress(data)
			require.NoError(t, err)
			decompressed, err := c.Decompress(compressed, 0)
			require.NoError(t, err)
			require.True(t, bytes.Equal(data, decompressed))
		}
	}
}

// randomBytes returns n bytes with high enough entropy that lz4 block
// compression reports them incompressible, exercising LZ4's raw-tag
// fallback path.
func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	rand.New(rand.NewSource(1)).Read(b)
	return b
}

func TestByName(t *testing.T) {
	_, err := compressors.ByName("none")
	require.NoError(t, err)
	_, err = compressors.ByName("")
	require.NoError(t, err)
	_, err = compressors.ByName("snappy")
	require.NoError(t, err)
	_, err = compressors.ByName("lz4")
	require.NoError(t, err)
	_, err = compressors.ByName("bogus")
	require.Error(t, err)
}
