package segment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/INLOpen/urkelstore/segment"
	"github.com/INLOpen/urkelstore/storefs/memfs"
)

func TestWriteThenReadSync(t *testing.T) {
	fs := memfs.New()
	seg, err := segment.Open(fs, "0000000001", 1, true)
	require.NoError(t, err)
	defer seg.Close()

	off, err := seg.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, int64(0), off)
	require.Equal(t, int64(5), seg.Size())

	got, err := seg.ReadSync(0, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestReadIncrementsAndDecrementsReads(t *testing.T) {
	fs := memfs.New()
	seg, err := segment.Open(fs, "0000000001", 1, true)
	require.NoError(t, err)
	defer seg.Close()

	seg.Write([]byte("0123456789"))
	_, err = seg.Read(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(0), seg.Reads())
}

func TestTruncateShrinksSize(t *testing.T) {
	fs := memfs.New()
	seg, err := segment.Open(fs, "0000000001", 1, true)
	require.NoError(t, err)
	defer seg.Close()

	seg.Write([]byte("0123456789"))
	require.NoError(t, seg.Truncate(4))
	require.Equal(t, int64(4), seg.Size())

	got, err := seg.ReadSync(0, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("0123"), got)
}
