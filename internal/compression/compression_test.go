package compression

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = []byte(strings.Repeat(`{"name": "workflow", "nodes": []}`+"\n", 64))

func TestRoundTripAllFormats(t *testing.T) {
	for _, format := range []Format{FormatGzip, FormatBzip2, FormatXZ, FormatNone} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, format)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if format != FormatNone {
				assert.Equal(t, format, Detect(buf.Bytes()))
			}

			rc, detected, err := NewAutoReader(&buf)
			require.NoError(t, err)
			defer rc.Close()
			assert.Equal(t, format, detected)

			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatGzip, f)

	f, err = ParseFormat("BZ2")
	require.NoError(t, err)
	assert.Equal(t, FormatBzip2, f)
	assert.Equal(t, ".bz2", f.Extension())

	_, err = ParseFormat("zstd")
	assert.ErrorIs(t, err, errors.ErrUnsupportedCompression)
}

func TestCompressAndDecompressFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "workflows.db")
	require.NoError(t, os.WriteFile(src, payload, 0644))

	dst := filepath.Join(dir, "out", "workflows.db.xz")
	require.NoError(t, CompressFile(src, dst, FormatXZ))

	detected, err := DetectFile(dst)
	require.NoError(t, err)
	assert.Equal(t, FormatXZ, detected)

	restored := filepath.Join(dir, "restored.db")
	format, err := DecompressFile(dst, restored)
	require.NoError(t, err)
	assert.Equal(t, FormatXZ, format)

	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = DecompressFile(filepath.Join(dir, "missing.gz"), restored)
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
}

func TestArchiveAndExtractDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "workflows")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.json"), []byte(`{"name":"a"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "b.json"), []byte(`{"name":"b"}`), 0644))

	archive := filepath.Join(dir, "workflows_files.tar.gz")
	require.NoError(t, ArchiveDir(src, archive, FormatGzip))

	out := filepath.Join(dir, "extract")
	require.NoError(t, ExtractArchive(archive, out))

	got, err := os.ReadFile(filepath.Join(out, "workflows", "nested", "b.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"b"}`, string(got))
	assert.FileExists(t, filepath.Join(out, "workflows", "a.json"))
}

func TestArchiveDirMissing(t *testing.T) {
	dir := t.TempDir()
	err := ArchiveDir(filepath.Join(dir, "absent"), filepath.Join(dir, "x.tar.gz"), FormatGzip)
	assert.ErrorIs(t, err, errors.ErrDirNotFound)
	assert.NoFileExists(t, filepath.Join(dir, "x.tar.gz"))
}

func TestExtractTarRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../evil.json", Mode: 0644, Size: 2, Typeflag: tar.TypeReg}))
	_, err := tw.Write([]byte("{}"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	err = ExtractTar(&buf, t.TempDir())
	assert.ErrorIs(t, err, errors.ErrInvalidArchive)
}
