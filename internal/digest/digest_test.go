package digest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownDigests(t *testing.T) {
	sha, err := NewHasher("")
	require.NoError(t, err)
	assert.Equal(t, SHA256, sha.Algorithm())
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sha.Hash([]byte("abc")))
	assert.Equal(t, sha.Hash([]byte("abc")), SHA256Hex([]byte("abc")))

	b2, err := NewHasher("BLAKE2b")
	require.NoError(t, err)
	assert.Equal(t, BLAKE2b, b2.Algorithm())
	assert.Equal(t, "bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319", b2.Hash([]byte("abc")))

	got, err := b2.HashReader(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, b2.Hash([]byte("abc")), got)
}

func TestUnsupportedAlgorithm(t *testing.T) {
	_, err := NewHasher("md5")
	assert.ErrorIs(t, err, errors.ErrUnsupportedDigest)
}

func TestHashAndVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	h, err := NewHasher(SHA256)
	require.NoError(t, err)

	ok, err := h.VerifyFile(path, strings.ToUpper(h.Hash([]byte("abc"))))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = h.HashFile(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
}
