package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// OnionVersion is the version byte of v3 onion services.
	OnionVersion byte = 0x03

	// OnionSuffix is appended to the base32 body of an address.
	OnionSuffix = ".onion"

	// Address layout: pubkey (32) + checksum (2) + version (1) = 35 bytes, 56 base32 chars.
	PublicKeyLen   = 32
	ChecksumLen    = 2
	AddressRawLen  = PublicKeyLen + ChecksumLen + 1
	AddressBodyLen = (AddressRawLen*8 + 4) / 5

	// Checksum input layout: tag (15) + pubkey (32) + version (1) = 48
	checksumTagLen   = 15
	ChecksumInputLen = checksumTagLen + PublicKeyLen + 1
)

// Errors
var (
	ErrInvalidAddress    = errors.New("invalid onion address")
	ErrChecksumMismatch  = errors.New("onion address checksum mismatch")
	ErrUnsupportedFormat = errors.New("unsupported onion address version")
)

// checksumTag is the domain-separation prefix hashed ahead of the key.
var checksumTag = [checksumTagLen]byte{'.', 'o', 'n', 'i', 'o', 'n', ' ', 'c', 'h', 'e', 'c', 'k', 's', 'u', 'm'}

// ChecksumInto computes the 2-byte address checksum reusing hasher and buf.
// buf must be at least ChecksumInputLen bytes, hashBuf at least 32.
func ChecksumInto(hasher hash.Hash, pub, buf, hashBuf []byte) [ChecksumLen]byte {
	copy(buf, checksumTag[:])
	copy(buf[checksumTagLen:], pub[:PublicKeyLen])
	buf[checksumTagLen+PublicKeyLen] = OnionVersion

	hasher.Reset()
	hasher.Write(buf[:ChecksumInputLen])
	sum := hasher.Sum(hashBuf[:0])
	return [ChecksumLen]byte{sum[0], sum[1]}
}

// Checksum returns the first two bytes of SHA3-256(".onion checksum" || pub || 0x03).
func Checksum(pub []byte) [ChecksumLen]byte {
	var buf [ChecksumInputLen]byte
	var hashBuf [32]byte
	return ChecksumInto(sha3.New256(), pub, buf[:], hashBuf[:])
}

// OnionAddress builds the full "<56 chars>.onion" address for a 32-byte public key.
func OnionAddress(pub []byte) string {
	if len(pub) != PublicKeyLen {
		panic(fmt.Errorf("public key must be %d bytes, got %d", PublicKeyLen, len(pub)))
	}
	sum := Checksum(pub)

	var raw [AddressRawLen]byte
	copy(raw[:], pub)
	raw[PublicKeyLen] = sum[0]
	raw[PublicKeyLen+1] = sum[1]
	raw[PublicKeyLen+2] = OnionVersion

	return EncodeBase32(raw[:]) + OnionSuffix
}

// DecodedAddress holds the parts of a decoded onion address
type DecodedAddress struct {
	PublicKey [PublicKeyLen]byte
	Checksum  [ChecksumLen]byte
	Version   byte
}

// DecodeOnionAddress parses an address with or without the ".onion" suffix and
// verifies its version and checksum.
func DecodeOnionAddress(addr string) (*DecodedAddress, error) {
	body := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(addr)), OnionSuffix)
	if len(body) != AddressBodyLen {
		return nil, fmt.Errorf("%w: got %d characters, want %d", ErrInvalidAddress, len(body), AddressBodyLen)
	}

	raw, err := DecodeBase32(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(raw) != AddressRawLen {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalidAddress, len(raw), AddressRawLen)
	}

	d := &DecodedAddress{Version: raw[AddressRawLen-1]}
	copy(d.PublicKey[:], raw[:PublicKeyLen])
	copy(d.Checksum[:], raw[PublicKeyLen:PublicKeyLen+ChecksumLen])

	if d.Version != OnionVersion {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedFormat, d.Version)
	}
	want := Checksum(d.PublicKey[:])
	if !bytes.Equal(want[:], d.Checksum[:]) {
		return nil, ErrChecksumMismatch
	}
	return d, nil
}
