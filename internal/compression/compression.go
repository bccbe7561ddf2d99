// Package compression provides stream compression (gzip, bzip2, xz),
// magic-byte format detection and tar archiving of directories.
package compression

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

// Format is a compression format.
type Format string

const (
	FormatNone  Format = "none"
	FormatGzip  Format = "gzip"
	FormatBzip2 Format = "bzip2"
	FormatXZ    Format = "xz"
)

var magicNumbers = []struct {
	format Format
	magic  []byte
}{
	{FormatGzip, []byte{0x1F, 0x8B}},
	{FormatBzip2, []byte{0x42, 0x5A, 0x68}},
	{FormatXZ, []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}},
}

// ParseFormat resolves a configured compression name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatGzip, "gz":
		return FormatGzip, nil
	case FormatBzip2, "bz2":
		return FormatBzip2, nil
	case FormatXZ:
		return FormatXZ, nil
	case FormatNone:
		return FormatNone, nil
	default:
		return "", fmt.Errorf("%w: %s", errors.ErrUnsupportedCompression, name)
	}
}

// Extension returns the file suffix for the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatGzip:
		return ".gz"
	case FormatBzip2:
		return ".bz2"
	case FormatXZ:
		return ".xz"
	default:
		return ""
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with a compressor. Closing the returned writer flushes
// the compressed stream but does not close w.
func NewWriter(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case FormatGzip:
		return gzip.NewWriter(w), nil
	case FormatBzip2:
		return bzip2.NewWriter(w, nil)
	case FormatXZ:
		return xz.NewWriter(w)
	case FormatNone:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedCompression, format)
	}
}

// NewReader wraps r with a decompressor for format.
func NewReader(r io.Reader, format Format) (io.ReadCloser, error) {
	switch format {
	case FormatGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrDecompressionFailed, err.Error())
		}
		return zr, nil
	case FormatBzip2:
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrDecompressionFailed, err.Error())
		}
		return br, nil
	case FormatXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrDecompressionFailed, err.Error())
		}
		return io.NopCloser(xr), nil
	case FormatNone:
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedCompression, format)
	}
}

// Detect identifies the compression of a stream by its leading bytes.
// Streams that match no known magic number are reported as FormatNone.
func Detect(header []byte) Format {
	for _, m := range magicNumbers {
		if bytes.HasPrefix(header, m.magic) {
			return m.format
		}
	}
	return FormatNone
}

// NewAutoReader detects the compression of r and returns a matching decompressor.
func NewAutoReader(r io.Reader) (io.ReadCloser, Format, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(6)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, FormatNone, err
	}

	format := Detect(header)
	rc, err := NewReader(br, format)
	return rc, format, err
}

// DetectFile identifies the compression of the file at path.
func DetectFile(path string) (Format, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FormatNone, fmt.Errorf("%w: %s", errors.ErrFileNotFound, path)
		}
		return FormatNone, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}
	defer file.Close()

	header := make([]byte, 6)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatNone, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}
	return Detect(header[:n]), nil
}

// CompressFile writes a compressed copy of src to dst.
func CompressFile(src, dst string, format Format) (err error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errors.ErrFileNotFound, src)
		}
		return fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrDirCreateError, err.Error())
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %s", errors.ErrFileWriteError, cerr.Error())
		}
	}()

	cw, err := NewWriter(out, format)
	if err != nil {
		return err
	}
	if _, err := io.Copy(cw, in); err != nil {
		cw.Close()
		return fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	return nil
}

// DecompressFile writes the decompressed contents of src to dst, detecting
// the compression format from its magic bytes. Uncompressed input is copied.
func DecompressFile(src, dst string) (format Format, err error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return FormatNone, fmt.Errorf("%w: %s", errors.ErrFileNotFound, src)
		}
		return FormatNone, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}
	defer in.Close()

	rc, format, err := NewAutoReader(in)
	if err != nil {
		return format, err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return format, fmt.Errorf("%w: %s", errors.ErrDirCreateError, err.Error())
	}
	out, err := os.Create(dst)
	if err != nil {
		return format, fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %s", errors.ErrFileWriteError, cerr.Error())
		}
	}()

	if _, err := io.Copy(out, rc); err != nil {
		return format, fmt.Errorf("%w: %s", errors.ErrDecompressionFailed, err.Error())
	}
	return format, nil
}
