package node_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/INLOpen/urkelstore/hashcap"
	"github.com/INLOpen/urkelstore/node"
)

func testCodec() node.Codec {
	return node.Codec{Hasher: hashcap.Blake2b256{}, KeySize: 32}
}

func TestNodeSizeInvariant(t *testing.T) {
	c := testCodec()
	require.Equal(t, 1+2*(32+2+4), c.NodeSize())
	require.LessOrEqual(t, c.LeafSize(), c.NodeSize())
}

func TestRoundTripInternal(t *testing.T) {
	c := testCodec()
	h := c.Hasher

	left := node.HashChild(h.Digest([]byte("left")), node.Pointer{Segment: 1, Offset: 10})
	right := node.NullChild()
	n := node.NewInternal(left, right)

	encoded, err := c.Encode(n)
	require.NoError(t, err)
	require.Len(t, encoded, c.NodeSize())

	decoded, err := c.Decode(encoded, 1, 100)
	require.NoError(t, err)

	reencoded, err := c.Encode(decoded)
	require.NoError(t, err)
	require.Equal(t, encoded, reencoded)

	di := decoded.(*node.Internal)
	require.False(t, di.Left.IsNull(h))
	require.True(t, di.Right.IsNull(h))
	require.Equal(t, uint16(1), di.Left.Pointer.Segment)
	require.Equal(t, uint32(10), di.Left.Pointer.Offset)
}

func TestRoundTripLeaf(t *testing.T) {
	c := testCodec()
	h := c.Hasher

	key := make([]byte, 32)
	key[0] = 0xAB
	leaf := node.NewLeaf(key, h.Digest([]byte("leaf")))
	leaf.Value = node.Pointer{Segment: 2, Offset: 200}
	leaf.ValueSize = 5

	encoded, err := c.Encode(leaf)
	require.NoError(t, err)
	require.Len(t, encoded, c.NodeSize())

	// Bytes beyond LeafSize() must be zero padding (spec §3.2).
	for i := c.LeafSize(); i < c.NodeSize(); i++ {
		require.Zerof(t, encoded[i], "byte %d should be zero padding", i)
	}

	decoded, err := c.Decode(encoded, 7, 77)
	require.NoError(t, err)
	dl := decoded.(*node.Leaf)
	require.Equal(t, key, dl.Key)
	require.Equal(t, uint16(2), dl.Value.Segment)
	require.Equal(t, uint32(200), dl.Value.Offset)
	require.Equal(t, uint32(5), dl.ValueSize)
	p, ok := dl.Placement()
	require.True(t, ok)
	require.Equal(t, node.Pointer{Segment: 7, Offset: 77}, p)
}

func TestDecodeInvalidTagIsCorruption(t *testing.T) {
	c := testCodec()
	buf := make([]byte, c.NodeSize())
	buf[0] = 0xFF

	_, err := c.Decode(buf, 1, 0)
	require.Error(t, err)
	var corrupt *node.ErrDatabaseCorruption
	require.ErrorAs(t, err, &corrupt)
}

func TestEncodeLeafWrongKeySizeErrors(t *testing.T) {
	c := testCodec()
	leaf := node.NewLeaf([]byte("short"), c.Hasher.Digest([]byte("x")))
	_, err := c.Encode(leaf)
	require.Error(t, err)
}
