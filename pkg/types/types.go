package types

import (
	"sync/atomic"
	"time"
)

// PublicKeySize is the length of an encoded edwards25519 point.
const PublicKeySize = 32

// Match is a snapshot of a claimed search result.
type Match struct {
	ThreadID    uint32
	BatchIndex  uint32
	PrefixIndex uint32
	PublicKey   [PublicKeySize]byte
	PrivateKey  Scalar256
}

// SearchResult is the single result slot shared by every lane of one kernel invocation.
// The first lane to Claim it wins; later claims are ignored until Reset.
type SearchResult struct {
	found atomic.Bool
	match Match
}

// Claim records m if the slot is still empty and reports whether it won.
func (r *SearchResult) Claim(m Match) bool {
	if !r.found.CompareAndSwap(false, true) {
		return false
	}
	r.match = m
	return true
}

// Found reports whether a lane claimed the slot.
// Only meaningful once the invocation that may write it has completed.
func (r *SearchResult) Found() bool {
	return r.found.Load()
}

// Match returns the claimed match. The zero Match is returned when nothing was found.
func (r *SearchResult) Match() Match {
	if !r.found.Load() {
		return Match{}
	}
	return r.match
}

// Reset zeroes the slot before the next invocation.
func (r *SearchResult) Reset() {
	r.match = Match{}
	r.found.Store(false)
}

// OnionRecord is the finalized artifact persisted for a match
type OnionRecord struct {
	Address    string // 56 base32 characters followed by ".onion"
	PrivateKey string // 64 lowercase hex chars, little-endian scalar
	PublicKey  string // 64 lowercase hex chars
	Prefix     string

	PublicKeyBytes  [PublicKeySize]byte
	PrivateKeyBytes [32]byte
}

// Summary describes a finished search run
type Summary struct {
	Matches     int
	KeysChecked uint64
	Invocations uint64
	Duration    time.Duration
	State       string
	Records     []*OnionRecord
}

// Rate returns the aggregate keys per second over the whole run.
func (s *Summary) Rate() float64 {
	if s.Duration.Seconds() <= 0 {
		return 0
	}
	return float64(s.KeysChecked) / s.Duration.Seconds()
}
