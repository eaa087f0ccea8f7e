// Package prefix encodes operator-supplied onion prefixes into 5-bit digit
// sequences and matches them against raw public key bytes.
//
// A prefix of n characters covers the first 5n bits of the 35-byte address
// payload. For n <= MaxPrefixLen those bits lie entirely inside the public
// key, so a match on the key bytes guarantees a match on the final address.
package prefix

import (
	"fmt"

	"github.com/screa/onion-vanity-miner/internal/crypto"
)

const (
	// MaxPrefixes caps the number of prefixes searched at once.
	MaxPrefixes = 32

	// MaxPrefixLen is the longest accepted prefix in base32 characters.
	MaxPrefixLen = 16

	maxPrefixBytes = (MaxPrefixLen*5 + 7) / 8
)

// Reason explains why a prefix was not loaded.
type Reason string

const (
	ReasonEmpty       Reason = "empty prefix"
	ReasonInvalidChar Reason = "invalid base32 character"
	ReasonTooLong     Reason = "prefix too long"
	ReasonTableFull   Reason = "too many prefixes"
	ReasonDuplicate   Reason = "duplicate prefix"
)

// Rejection records a prefix dropped at load time.
type Rejection struct {
	Prefix string
	Reason Reason
}

func (r Rejection) String() string {
	return fmt.Sprintf("%q: %s", r.Prefix, r.Reason)
}

// entry is one accepted prefix in both digit and packed-bit form.
type entry struct {
	text   string
	digits []byte
	// first nBytes of the key must equal bits under mask
	bits   [maxPrefixBytes]byte
	mask   [maxPrefixBytes]byte
	nBytes int
}

// Table is the read-only prefix set shared by every lane.
type Table struct {
	entries []entry
}

// Load encodes prefixes in order. Invalid, over-long, duplicate and excess
// prefixes are dropped and reported; they never cause an error.
func Load(prefixes []string) (*Table, []Rejection) {
	t := &Table{}
	var rejected []Rejection
	seen := make(map[string]struct{}, len(prefixes))

	for _, p := range prefixes {
		switch {
		case p == "":
			rejected = append(rejected, Rejection{p, ReasonEmpty})
			continue
		case len(p) > MaxPrefixLen:
			rejected = append(rejected, Rejection{p, ReasonTooLong})
			continue
		}

		// no case folding or trimming: "ABC" and " abc" are not onion prefixes
		digits, ok := encodeDigits(p)
		if !ok {
			rejected = append(rejected, Rejection{p, ReasonInvalidChar})
			continue
		}
		if _, dup := seen[p]; dup {
			rejected = append(rejected, Rejection{p, ReasonDuplicate})
			continue
		}
		if len(t.entries) >= MaxPrefixes {
			rejected = append(rejected, Rejection{p, ReasonTableFull})
			continue
		}

		seen[p] = struct{}{}
		t.entries = append(t.entries, newEntry(p, digits))
	}

	return t, rejected
}

func encodeDigits(p string) ([]byte, bool) {
	digits := make([]byte, len(p))
	for i := 0; i < len(p); i++ {
		d := crypto.Base32Index(p[i])
		if d < 0 {
			return nil, false
		}
		digits[i] = byte(d)
	}
	return digits, true
}

// newEntry packs the digits MSB-first into the leading key bits.
func newEntry(text string, digits []byte) entry {
	e := entry{text: text, digits: digits}
	for i, d := range digits {
		for b := 0; b < 5; b++ {
			bit := i*5 + b
			if d&(0x10>>b) != 0 {
				e.bits[bit/8] |= 0x80 >> (bit % 8)
			}
			e.mask[bit/8] |= 0x80 >> (bit % 8)
		}
	}
	e.nBytes = (len(digits)*5 + 7) / 8
	return e
}

// Len returns the number of accepted prefixes.
func (t *Table) Len() int {
	return len(t.entries)
}

// Prefix returns the text of prefix i.
func (t *Table) Prefix(i int) string {
	return t.entries[i].text
}

// Prefixes returns the accepted prefixes in load order.
func (t *Table) Prefixes() []string {
	out := make([]string, len(t.entries))
	for i := range t.entries {
		out[i] = t.entries[i].text
	}
	return out
}

// Digits returns the 5-bit digit sequence of prefix i.
func (t *Table) Digits(i int) []byte {
	return t.entries[i].digits
}

// ShortestLen returns the length of the shortest prefix, or 0 for an empty table.
func (t *Table) ShortestLen() int {
	n := 0
	for i := range t.entries {
		if l := len(t.entries[i].digits); n == 0 || l < n {
			n = l
		}
	}
	return n
}

// Match tests key against every prefix in order and returns the index of the first hit.
func (t *Table) Match(key []byte) (int, bool) {
	for i := range t.entries {
		e := &t.entries[i]
		hit := true
		for j := 0; j < e.nBytes; j++ {
			if key[j]&e.mask[j] != e.bits[j] {
				hit = false
				break
			}
		}
		if hit {
			return i, true
		}
	}
	return -1, false
}

// Digit extracts base32 digit i (5 bits, MSB-first) from key.
func Digit(key []byte, i int) byte {
	bit := i * 5
	hi := uint16(key[bit/8]) << 8
	if bit/8+1 < len(key) {
		hi |= uint16(key[bit/8+1])
	}
	return byte(hi>>(11-bit%8)) & 0x1f
}

// MatchDigits is the digit-by-digit form of Match.
func (t *Table) MatchDigits(key []byte) (int, bool) {
	for i := range t.entries {
		digits := t.entries[i].digits
		hit := true
		for j, d := range digits {
			if Digit(key, j) != d {
				hit = false
				break
			}
		}
		if hit {
			return i, true
		}
	}
	return -1, false
}
