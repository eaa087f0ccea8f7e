// Package finalizer turns a raw kernel match into a canonical onion address
// and persists it as a human-readable record.
package finalizer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/screa/onion-vanity-miner/internal/crypto"
	"github.com/screa/onion-vanity-miner/internal/logger"
	"github.com/screa/onion-vanity-miner/pkg/types"
)

const (
	// DefaultFileName receives matches whose prefix index is out of range.
	DefaultFileName = "found.txt"

	recordRule = "=================================================="
)

// Finalizer builds and persists onion records.
type Finalizer struct {
	outputDir string
	hsDir     string
	prefixes  []string
	logger    *logger.Logger
}

// Option configures a Finalizer
type Option func(*Finalizer)

// WithHiddenServiceDir additionally exports each match as a Tor hidden-service directory under dir.
func WithHiddenServiceDir(dir string) Option {
	return func(f *Finalizer) {
		f.hsDir = dir
	}
}

// New creates a finalizer writing result files into outputDir.
// prefixes maps a match's prefix index to its result file name.
func New(outputDir string, prefixes []string, log *logger.Logger, opts ...Option) *Finalizer {
	f := &Finalizer{
		outputDir: outputDir,
		prefixes:  prefixes,
		logger:    log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Record derives the finalized record for a match.
//
// Only the candidate with the top bit of the key cleared is finalized. When
// the matched point had that bit set, the cleared encoding belongs to the
// negated point, so the scalar is negated to keep priv*B == pub.
//
// The recorded private key is therefore not the kernel's raw 256-bit value:
// it is that value reduced mod the group order l (and negated as above),
// written as 32 little-endian bytes. It is still a raw scalar rather than an
// RFC 8032 seed, which is what the record's NOTE line refers to.
func Record(m types.Match, prefixes []string) *types.OnionRecord {
	pub := m.PublicKey
	scalar := crypto.ReduceScalar(m.PrivateKey)
	if pub[crypto.PublicKeyLen-1]&0x80 != 0 {
		pub[crypto.PublicKeyLen-1] &^= 0x80
		scalar.Negate(scalar)
	}

	rec := &types.OnionRecord{
		Address:        crypto.OnionAddress(pub[:]),
		PublicKeyBytes: pub,
	}
	copy(rec.PrivateKeyBytes[:], scalar.Bytes())
	rec.PrivateKey = hex.EncodeToString(rec.PrivateKeyBytes[:])
	rec.PublicKey = hex.EncodeToString(pub[:])
	if int(m.PrefixIndex) < len(prefixes) {
		rec.Prefix = prefixes[m.PrefixIndex]
	}
	return rec
}

// FileName returns the result file for a prefix index.
func FileName(prefixes []string, index uint32) string {
	if int(index) < len(prefixes) {
		return prefixes[index] + ".txt"
	}
	return DefaultFileName
}

// FormatRecord renders the persisted text block for rec.
func FormatRecord(rec *types.OnionRecord) string {
	var sb strings.Builder
	sb.WriteString(recordRule + "\n")
	sb.WriteString("Onion URL:   " + rec.Address + "\n")
	sb.WriteString("Private Key: " + rec.PrivateKey + "\n")
	sb.WriteString("Public Key:  " + rec.PublicKey + "\n")
	sb.WriteString("NOTE: Private Key is a RAW SCALAR (not a seed).\n")
	sb.WriteString(recordRule + "\n")
	return sb.String()
}

// Finalize builds the record for m, appends it to the prefix's result file
// and, when configured, exports the hidden-service directory. Both writes are
// attempted even if one fails; the record is returned in every case.
func (f *Finalizer) Finalize(m types.Match) (*types.OnionRecord, error) {
	rec := Record(m, f.prefixes)
	path := filepath.Join(f.outputDir, FileName(f.prefixes, m.PrefixIndex))

	var errs []error
	if err := appendRecord(path, rec); err != nil {
		errs = append(errs, err)
	} else if f.logger != nil {
		f.logger.Infof("MATCH FOUND: %s (saved to %s)", rec.Address, path)
	}

	if f.hsDir != "" {
		dir, err := WriteHiddenServiceDir(f.hsDir, rec)
		if err != nil {
			errs = append(errs, err)
		} else if f.logger != nil {
			f.logger.Infof("Hidden service keys written to %s", dir)
		}
	}

	return rec, errors.Join(errs...)
}

func appendRecord(path string, rec *types.OnionRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open result file: %w", err)
	}

	if _, err = file.WriteString(FormatRecord(rec)); err != nil {
		_ = file.Close()
		return fmt.Errorf("write result file: %w", err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("close result file: %w", err)
	}
	return nil
}
