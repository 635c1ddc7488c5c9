// Package node defines the four Urkel tree node variants and their
// fixed-width on-disk codec (spec §3.1, §4.1).
package node

import (
	"bytes"

	"github.com/INLOpen/urkelstore/hashcap"
)

// Tag is the one-byte discriminant written at the start of every
// persisted node slot. Null and Hash are never themselves written to
// disk -- Null is the zero-digest sentinel and Hash is an unresolved
// reference to a slot tagged Internal or Leaf.
type Tag byte

const (
	TagInternal Tag = 1
	TagLeaf     Tag = 2
)

// Pointer names a byte range on disk: either a node slot (Size implied
// by NodeSize) or a value payload (Size explicit).
type Pointer struct {
	Segment uint16
	Offset  uint32
}

// Node is implemented by *Internal and *Leaf, the two variants ever
// encoded to or decoded from a node slot.
type Node interface {
	Tag() Tag
	// Digest returns this node's hash, memoizing it on Internal.
	Digest(h hashcap.Hasher) []byte
	// Placement reports where this node is persisted. ok is false until
	// the store assigns it a position via SetPlacement.
	Placement() (Pointer, bool)
	SetPlacement(p Pointer)
}

type placement struct {
	pointer Pointer
	set     bool
}

func (p *placement) Placement() (Pointer, bool) { return p.pointer, p.set }
func (p *placement) SetPlacement(ptr Pointer)    { p.pointer = ptr; p.set = true }

// Child is a child slot of an Internal node: either the Null sentinel,
// an unresolved Hash pointer, or a Resolved node already loaded into
// memory. There are no cycles by construction.
type Child struct {
	// Digest is the child's hash. A zero-length or all-zero digest
	// (matching the configured Hasher's Zero()) means Null.
	Digest []byte
	// Pointer is meaningful only when Digest is non-null.
	Pointer Pointer
	// Resolved is non-nil once the pointer has been read back and
	// decoded into an Internal or Leaf.
	Resolved Node
}

// NullChild is the empty-subtree sentinel.
func NullChild() Child { return Child{} }

// HashChild is an unresolved reference to a node persisted at p.
func HashChild(digest []byte, p Pointer) Child {
	return Child{Digest: digest, Pointer: p}
}

// ResolvedChild wraps an already-loaded node as a child, carrying its
// digest and placement forward so re-encoding the parent doesn't need to
// re-hash or re-resolve.
func ResolvedChild(n Node, h hashcap.Hasher) Child {
	p, _ := n.Placement()
	return Child{Digest: n.Digest(h), Pointer: p, Resolved: n}
}

// IsNull reports whether c is the Null sentinel.
func (c Child) IsNull(h hashcap.Hasher) bool {
	return len(c.Digest) == 0 || bytes.Equal(c.Digest, h.Zero())
}

// Internal is a node with two children. Its digest is
// H_internal(left.hash, right.hash), memoized after first computation.
type Internal struct {
	placement
	Left, Right Child

	digest []byte
}

// NewInternal constructs an Internal node from its two children.
func NewInternal(left, right Child) *Internal {
	return &Internal{Left: left, Right: right}
}

func (n *Internal) Tag() Tag { return TagInternal }

func (n *Internal) Digest(h hashcap.Hasher) []byte {
	if n.digest == nil {
		left := n.Left.Digest
		if len(left) == 0 {
			left = h.Zero()
		}
		right := n.Right.Digest
		if len(right) == 0 {
			right = h.Zero()
		}
		n.digest = h.Internal(left, right)
	}
	return n.digest
}

// Leaf holds a fixed-width key, a pointer to its value payload, and a
// leaf digest computed and supplied verbatim by the tree layer (the
// store never hashes key/value bytes itself).
type Leaf struct {
	placement
	Key        []byte
	Value      Pointer
	ValueSize  uint32
	LeafDigest []byte
}

// NewLeaf constructs a Leaf with an already-computed digest; Value/
// ValueSize are populated later by write_value.
func NewLeaf(key, leafDigest []byte) *Leaf {
	return &Leaf{Key: key, LeafDigest: leafDigest}
}

func (n *Leaf) Tag() Tag                           { return TagLeaf }
func (n *Leaf) Digest(hashcap.Hasher) []byte       { return n.LeafDigest }

// Null is an empty-subtree marker type. It carries no placement and is
// never itself encoded. The store does not return it: an empty root is
// reported as NullChild().
type Null struct{}
