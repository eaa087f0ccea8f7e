package crypto

import "encoding/base32"

// Base32Alphabet is the RFC 4648 alphabet in lower case, as used by onion addresses.
const Base32Alphabet = "abcdefghijklmnopqrstuvwxyz234567"

var onionEncoding = base32.NewEncoding(Base32Alphabet).WithPadding(base32.NoPadding)

// EncodeBase32 encodes data in 5-bit groups without padding.
// The output is ceil(8*len(data)/5) characters long.
func EncodeBase32(data []byte) string {
	return onionEncoding.EncodeToString(data)
}

// DecodeBase32 reverses EncodeBase32.
func DecodeBase32(s string) ([]byte, error) {
	return onionEncoding.DecodeString(s)
}

// Base32Index maps an alphabet character to its 5-bit value, or -1.
func Base32Index(c byte) int {
	switch {
	case c >= 'a' && c <= 'z':
		return int(c - 'a')
	case c >= '2' && c <= '7':
		return int(c-'2') + 26
	default:
		return -1
	}
}
