// Package digest computes content digests for index records and backup manifests.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	// SHA256 is the default algorithm
	SHA256 Algorithm = "sha256"
	// BLAKE2b is BLAKE2b-256
	BLAKE2b Algorithm = "blake2b"
)

// Hasher hashes bytes, readers and files with one algorithm.
type Hasher struct {
	algorithm Algorithm
	newHash   func() hash.Hash
}

// NewHasher creates a Hasher for the named algorithm.
func NewHasher(algorithm Algorithm) (*Hasher, error) {
	var newHashFunc func() hash.Hash

	switch Algorithm(strings.ToLower(string(algorithm))) {
	case "", SHA256:
		algorithm = SHA256
		newHashFunc = sha256.New
	case BLAKE2b:
		algorithm = BLAKE2b
		newHashFunc = func() hash.Hash {
			// New256 only fails for keys longer than 64 bytes
			h, _ := blake2b.New256(nil)
			return h
		}
	default:
		return nil, fmt.Errorf("%w: '%s'", errors.ErrUnsupportedDigest, algorithm)
	}

	return &Hasher{algorithm: algorithm, newHash: newHashFunc}, nil
}

// Algorithm returns the hasher's algorithm.
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) string {
	hasher := h.newHash()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashReader returns the hex digest of everything read from reader.
func (h *Hasher) HashReader(reader io.Reader) (string, error) {
	hasher := h.newHash()
	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("hash operation failed: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashFile returns the hex digest of the file at path.
func (h *Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", errors.ErrFileNotFound, path)
		}
		return "", fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}
	defer file.Close()

	return h.HashReader(file)
}

// VerifyFile reports whether the file's digest equals expected, ignoring case.
func (h *Hasher) VerifyFile(path, expected string) (bool, error) {
	actual, err := h.HashFile(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expected), nil
}

// SHA256Hex is a shorthand for the SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
