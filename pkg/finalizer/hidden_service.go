package finalizer

import (
	"crypto/sha512"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/screa/onion-vanity-miner/internal/crypto"
	"github.com/screa/onion-vanity-miner/pkg/types"
)

// Key file headers, each padded to 32 bytes.
const (
	secretKeyHeader = "== ed25519v1-secret: type0 ==\x00\x00\x00"
	publicKeyHeader = "== ed25519v1-public: type0 ==\x00\x00\x00"

	SecretKeyFile = "hs_ed25519_secret_key"
	PublicKeyFile = "hs_ed25519_public_key"
	HostnameFile  = "hostname"
)

// ExpandedSecretKey returns the 64-byte expanded key Tor stores for a raw scalar:
// the scalar followed by a 32-byte signing prefix derived from it.
func ExpandedSecretKey(rec *types.OnionRecord) [64]byte {
	var out [64]byte
	copy(out[:32], rec.PrivateKeyBytes[:])
	h := sha512.Sum512(rec.PrivateKeyBytes[:])
	copy(out[32:], h[32:])
	return out
}

// WriteHiddenServiceDir writes the key pair and hostname for rec into
// root/<address body>, the layout Tor expects for HiddenServiceDir.
func WriteHiddenServiceDir(root string, rec *types.OnionRecord) (string, error) {
	dir := filepath.Join(root, strings.TrimSuffix(rec.Address, crypto.OnionSuffix))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create hidden service directory: %w", err)
	}

	expanded := ExpandedSecretKey(rec)
	files := []struct {
		name string
		data []byte
	}{
		{SecretKeyFile, append([]byte(secretKeyHeader), expanded[:]...)},
		{PublicKeyFile, append([]byte(publicKeyHeader), rec.PublicKeyBytes[:]...)},
		{HostnameFile, []byte(rec.Address + "\n")},
	}

	for _, file := range files {
		if err := os.WriteFile(filepath.Join(dir, file.name), file.data, 0o600); err != nil {
			return "", fmt.Errorf("write %s: %w", file.name, err)
		}
	}
	return dir, nil
}
