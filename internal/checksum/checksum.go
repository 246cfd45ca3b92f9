// Package checksum fingerprints files for accidental-corruption detection.
// The digests are not a tamper-resistance guarantee.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

type Algorithm string

const (
	MD5    Algorithm = "md5"
	BLAKE3 Algorithm = "blake3"

	blockSize = 64 * 1024
)

var (
	ErrIO                   = errors.New("checksum: io error")
	ErrUnsupportedAlgorithm = errors.New("checksum: unsupported algorithm")
)

// ParseAlgorithm accepts "md5" and "blake3" in any case. Empty means md5.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", MD5:
		return MD5, nil
	case BLAKE3:
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
	}
}

func New(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD5, "":
		return md5.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algo)
	}
}

// Digest returns the hex md5 of the file at path.
func Digest(path string) (string, error) {
	return DigestWith(path, MD5)
}

func DigestWith(path string, algo Algorithm) (string, error) {
	h, err := New(algo)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open %s: %w", ErrIO, path, err)
	}
	defer f.Close()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("%w: failed to read %s: %w", ErrIO, path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestBytes hashes an in-memory payload.
func DigestBytes(data []byte, algo Algorithm) (string, error) {
	h, err := New(algo)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Equal compares two hex digests ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
