// Package fsutil holds the file helpers shared by the loaders, the organizer
// and the backup manager. Every helper that touches a path first takes that
// path's mutex, so concurrent workers never interleave writes to one file.
package fsutil

import (
	"path/filepath"
	"sort"
	"sync"
)

// pathMutexes maps a cleaned path to its *sync.Mutex.
var pathMutexes sync.Map

// GetPathMutex returns the process-wide mutex guarding path. Paths are
// cleaned first, so "a/b/" and "a/b" share a mutex.
func GetPathMutex(path string) *sync.Mutex {
	actual, _ := pathMutexes.LoadOrStore(filepath.Clean(path), &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// acquireMutexes locks the mutexes of all paths in sorted order and returns
// an idempotent unlock function. Duplicates are locked once.
func acquireMutexes(paths ...string) func() {
	cleaned := make([]string, len(paths))
	for i, p := range paths {
		cleaned[i] = filepath.Clean(p)
	}
	sort.Strings(cleaned)

	var locked []*sync.Mutex
	for i, p := range cleaned {
		if i > 0 && p == cleaned[i-1] {
			continue
		}
		mu := GetPathMutex(p)
		mu.Lock()
		locked = append(locked, mu)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(locked) - 1; i >= 0; i-- {
				locked[i].Unlock()
			}
		})
	}
}
