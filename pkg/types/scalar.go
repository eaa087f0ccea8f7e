package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// ScalarWords is the number of 32-bit limbs in a Scalar256.
const ScalarWords = 8

// Scalar256 is an unsigned 256-bit integer stored as 8 little-endian 32-bit words.
// It is the private scalar / search base handed to the kernel.
type Scalar256 [ScalarWords]uint32

// Add adds a 64-bit value with carry propagation across all words.
// Overflow past the most significant word is dropped, so the result is (s + n) mod 2^256.
func (s *Scalar256) Add(n uint64) {
	sum := uint64(s[0]) + (n & 0xffffffff)
	s[0] = uint32(sum)
	carry := sum>>32 + n>>32

	for i := 1; i < ScalarWords && carry != 0; i++ {
		sum = uint64(s[i]) + carry
		s[i] = uint32(sum)
		carry = sum >> 32
	}
}

// Plus returns s + n without modifying s.
func (s Scalar256) Plus(n uint64) Scalar256 {
	s.Add(n)
	return s
}

// Cmp compares s and o as unsigned integers, returning -1, 0 or +1.
func (s Scalar256) Cmp(o Scalar256) int {
	for i := ScalarWords - 1; i >= 0; i-- {
		switch {
		case s[i] < o[i]:
			return -1
		case s[i] > o[i]:
			return 1
		}
	}
	return 0
}

// Bytes returns the 32-byte little-endian encoding of s.
func (s Scalar256) Bytes() [32]byte {
	var out [32]byte
	for i, w := range s {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// ScalarFromBytes decodes a 32-byte little-endian value.
func ScalarFromBytes(b []byte) (Scalar256, error) {
	var s Scalar256
	if len(b) != 32 {
		return s, fmt.Errorf("scalar must be 32 bytes, got %d", len(b))
	}
	for i := range s {
		s[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return s, nil
}

// Hex returns the lowercase hex of the little-endian byte encoding.
func (s Scalar256) Hex() string {
	b := s.Bytes()
	return hex.EncodeToString(b[:])
}

// IsZero reports whether every word is zero.
func (s Scalar256) IsZero() bool {
	return s == Scalar256{}
}
