package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileInfo represents metadata about a file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	Mode    os.FileMode
	IsDir   bool
	ModTime time.Time
}

// FileExists checks if a file exists and is not a directory
func FileExists(path string) bool {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// GetFileInfo retrieves file information
func GetFileInfo(path string) (*FileInfo, error) {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error getting file info: %w", err)
	}

	return &FileInfo{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		Mode:    info.Mode(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}, nil
}

// ReadFile reads an entire file into memory
func ReadFile(path string) ([]byte, error) {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	return os.ReadFile(path)
}

// WriteFile writes data to a file, creating its parent directory if necessary
func WriteFile(path string, data []byte, perm os.FileMode) error {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, perm)
}

// CopyFile copies a file from source to destination, preserving mode and modification time
func CopyFile(src, dst string) error {
	unlock := acquireMutexes(src, dst)
	defer unlock()

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening source file: %w", err)
	}
	defer sourceFile.Close()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return fmt.Errorf("error getting source file info: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("error creating destination directory: %w", err)
	}

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating destination file: %w", err)
	}
	defer destFile.Close()

	if _, err = io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("error copying file: %w", err)
	}

	if err = os.Chmod(dst, sourceInfo.Mode()); err != nil {
		return fmt.Errorf("error setting file permissions: %w", err)
	}

	return os.Chtimes(dst, sourceInfo.ModTime(), sourceInfo.ModTime())
}

// DeleteFile deletes a file if it exists
func DeleteFile(path string) error {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil // File doesn't exist or is a directory, nothing to do
	}
	return os.Remove(path)
}

// ListFiles returns the regular files in dir matching the glob pattern, sorted by name
func ListFiles(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}

	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}
