package node

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/INLOpen/urkelstore/hashcap"
)

// ErrDatabaseCorruption is returned when a node slot's tag byte is
// neither TagInternal nor TagLeaf.
type ErrDatabaseCorruption struct {
	Segment uint16
	Offset  uint32
	Tag     byte
}

func (e *ErrDatabaseCorruption) Error() string {
	return fmt.Sprintf("database corruption: invalid node tag %d at segment %d offset %d", e.Tag, e.Segment, e.Offset)
}

// Codec encodes and decodes node slots for a fixed digest size and key
// size. Both are constant for the lifetime of a store.
type Codec struct {
	Hasher  hashcap.Hasher
	KeySize int // bits/8
}

// NodeSize is the fixed width of every persisted node slot:
// 1 + 2*(digest_size + 2 + 4).
func (c Codec) NodeSize() int {
	return 1 + 2*(c.Hasher.Size()+2+4)
}

// LeafSize is the (smaller, zero-padded-to-NodeSize) width a Leaf
// actually occupies: 1 + digest_size + key_size + 2 + 4 + 4.
func (c Codec) LeafSize() int {
	return 1 + c.Hasher.Size() + c.KeySize + 2 + 4 + 4
}

// Encode renders n into a freshly allocated NodeSize()-byte slot.
func (c Codec) Encode(n Node) ([]byte, error) {
	buf := make([]byte, c.NodeSize())
	switch v := n.(type) {
	case *Internal:
		c.encodeInternal(buf, v)
	case *Leaf:
		if len(v.Key) != c.KeySize {
			return nil, fmt.Errorf("node: leaf key has %d bytes, want %d", len(v.Key), c.KeySize)
		}
		c.encodeLeaf(buf, v)
	default:
		return nil, fmt.Errorf("node: cannot encode node of type %T", n)
	}
	return buf, nil
}

func (c Codec) encodeInternal(buf []byte, n *Internal) {
	buf[0] = byte(TagInternal)
	off := 1
	off = c.encodeChild(buf, off, n.Left)
	c.encodeChild(buf, off, n.Right)
}

func (c Codec) encodeChild(buf []byte, off int, ch Child) int {
	d := ch.Digest
	seg, posn := uint16(0), uint32(0)
	if !ch.IsNull(c.Hasher) {
		seg, posn = ch.Pointer.Segment, ch.Pointer.Offset
	} else {
		d = c.Hasher.Zero()
	}
	copy(buf[off:], d)
	off += c.Hasher.Size()
	binary.LittleEndian.PutUint16(buf[off:], seg)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], posn)
	off += 4
	return off
}

func (c Codec) encodeLeaf(buf []byte, n *Leaf) {
	buf[0] = byte(TagLeaf)
	off := 1
	copy(buf[off:], n.LeafDigest)
	off += c.Hasher.Size()
	copy(buf[off:], n.Key)
	off += c.KeySize
	binary.LittleEndian.PutUint16(buf[off:], n.Value.Segment)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], n.Value.Offset)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], n.ValueSize)
	off += 4
	// remainder of buf is already zero: the padding invariant (spec §3.2).
}

// Decode parses a NodeSize()-byte slot read from (segment, offset).
// Decoded key/digest fields are views over data, not copies, per the
// codec's no-extra-allocation contract -- callers must keep data alive
// for as long as the returned Node is used.
func (c Codec) Decode(data []byte, segment uint16, offset uint32) (Node, error) {
	if len(data) != c.NodeSize() {
		return nil, fmt.Errorf("node: decode expects %d bytes, got %d", c.NodeSize(), len(data))
	}
	tag := Tag(data[0])
	switch tag {
	case TagInternal:
		n := c.decodeInternal(data)
		n.SetPlacement(Pointer{Segment: segment, Offset: offset})
		return n, nil
	case TagLeaf:
		n := c.decodeLeaf(data)
		n.SetPlacement(Pointer{Segment: segment, Offset: offset})
		return n, nil
	default:
		return nil, &ErrDatabaseCorruption{Segment: segment, Offset: offset, Tag: data[0]}
	}
}

func (c Codec) decodeInternal(data []byte) *Internal {
	off := 1
	left, off := c.decodeChild(data, off)
	right, _ := c.decodeChild(data, off)
	return &Internal{Left: left, Right: right}
}

func (c Codec) decodeChild(data []byte, off int) (Child, int) {
	d := data[off : off+c.Hasher.Size()]
	off += c.Hasher.Size()
	seg := binary.LittleEndian.Uint16(data[off:])
	off += 2
	posn := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if bytes.Equal(d, c.Hasher.Zero()) {
		return NullChild(), off
	}
	return HashChild(d, Pointer{Segment: seg, Offset: posn}), off
}

func (c Codec) decodeLeaf(data []byte) *Leaf {
	off := 1
	digest := data[off : off+c.Hasher.Size()]
	off += c.Hasher.Size()
	key := data[off : off+c.KeySize]
	off += c.KeySize
	seg := binary.LittleEndian.Uint16(data[off:])
	off += 2
	vOff := binary.LittleEndian.Uint32(data[off:])
	off += 4
	vSize := binary.LittleEndian.Uint32(data[off:])

	return &Leaf{
		Key:        key,
		Value:      Pointer{Segment: seg, Offset: vOff},
		ValueSize:  vSize,
		LeafDigest: digest,
	}
}
