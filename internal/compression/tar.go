package compression

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
)

// WriteTar archives the directory src into w. Entry names are relative to
// the parent of src, so the archive unpacks into a directory named like src.
func WriteTar(w io.Writer, src string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errors.ErrDirNotFound, src)
		}
		return fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", errors.ErrInvalidArgument, src)
	}

	tw := tar.NewWriter(w)
	base := filepath.Dir(filepath.Clean(src))

	err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(relPath)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(tw, file)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	return tw.Close()
}

// ArchiveDir writes src as a compressed tar archive to dst.
func ArchiveDir(src, dst string, format Format) (err error) {
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
		if err != nil {
			os.Remove(dst)
		}
	}()

	cw, err := NewWriter(out, format)
	if err != nil {
		return err
	}
	if err := WriteTar(cw, src); err != nil {
		cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrCompressionFailed, err.Error())
	}
	return nil
}

// ExtractTar unpacks a tar stream into dst. Entries that would escape dst
// are rejected with ErrInvalidArchive.
func ExtractTar(r io.Reader, dst string) error {
	root := filepath.Clean(dst)
	tr := tar.NewReader(r)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s", errors.ErrInvalidArchive, err.Error())
		}

		target := filepath.Join(root, filepath.FromSlash(hdr.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("%w: entry %q escapes destination", errors.ErrInvalidArchive, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("%w: %s", errors.ErrDirCreateError, err.Error())
			}
		case tar.TypeReg:
			if err := extractFile(tr, target, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		}
	}
}

func extractFile(r io.Reader, target string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrDirCreateError, err.Error())
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrDecompressionFailed, err.Error())
	}
	return nil
}

// ExtractArchive unpacks a (possibly compressed) tar archive file into dst.
func ExtractArchive(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errors.ErrFileNotFound, src)
		}
		return fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}
	defer in.Close()

	rc, _, err := NewAutoReader(in)
	if err != nil {
		return err
	}
	defer rc.Close()

	return ExtractTar(rc, dst)
}
