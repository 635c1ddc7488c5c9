package hashcap

import (
	"golang.org/x/crypto/blake2b"
)

// Blake2b256 is the default Hasher: BLAKE2b with a 32-byte digest, the
// algorithm Urkel trees use in production. It is the natural default
// here the same way the teacher reaches for a single concrete primitive
// (bcrypt) from the same golang.org/x/crypto module for its own hashing
// need, rather than hand-rolling one.
type Blake2b256 struct{}

var zero32 [32]byte

func (Blake2b256) Size() int { return 32 }

func (Blake2b256) Zero() []byte {
	out := make([]byte, 32)
	copy(out, zero32[:])
	return out
}

func (Blake2b256) Digest(data []byte) []byte {
	sum := blake2b.Sum256(data)
	out := make([]byte, 32)
	copy(out, sum[:])
	return out
}

func (h Blake2b256) Internal(left, right []byte) []byte {
	buf := make([]byte, 0, len(left)+len(right))
	buf = append(buf, left...)
	buf = append(buf, right...)
	return h.Digest(buf)
}
