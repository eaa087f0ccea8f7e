package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/screa/onion-vanity-miner/pkg/types"
)

// ErrEntropyUnavailable is returned when the entropy source cannot supply bytes.
var ErrEntropyUnavailable = errors.New("entropy source unavailable")

// EntropySource produces cryptographically secure random bytes.
type EntropySource interface {
	Read(p []byte) (n int, err error)
}

// SystemEntropy reads from the operating system CSPRNG.
var SystemEntropy EntropySource = rand.Reader

// RandomScalar draws a fresh 256-bit value from src.
func RandomScalar(src EntropySource) (types.Scalar256, error) {
	var buf [32]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return types.Scalar256{}, fmt.Errorf("%w: %w", ErrEntropyUnavailable, err)
	}
	return types.ScalarFromBytes(buf[:])
}
