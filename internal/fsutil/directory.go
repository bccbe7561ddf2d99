package fsutil

import (
	"os"
	"path/filepath"
)

// DirExists checks if a directory exists
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// CreateDirIfNotExists creates a directory and its parents if it does not exist
func CreateDirIfNotExists(path string) error {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	if DirExists(path) {
		return nil
	}
	return os.MkdirAll(path, 0755)
}

// RemoveDir removes a directory and everything beneath it
func RemoveDir(path string) error {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	return os.RemoveAll(path)
}

// ListSubdirs returns the immediate subdirectories of path
func ListSubdirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(path, e.Name()))
		}
	}
	return dirs, nil
}

// DirSize returns the total size in bytes of the regular files beneath path
func DirSize(path string) (int64, error) {
	var total int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
