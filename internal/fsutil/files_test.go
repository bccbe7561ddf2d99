package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyFilePreservesContentAndModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.json")
	dst := filepath.Join(dir, "nested", "dst.json")

	if err := os.WriteFile(src, []byte(`{"name":"x"}`), 0644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	if err := os.Chtimes(src, past, past); err != nil {
		t.Fatalf("Failed to set times: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("Failed to read copy: %v", err)
	}
	if string(data) != `{"name":"x"}` {
		t.Errorf("Unexpected content: %s", data)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.ModTime().Equal(past) {
		t.Errorf("Expected mod time %v, got %v", past, info.ModTime())
	}
}

func TestListFilesSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "notes.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.json"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := ListFiles(dir, "*.json")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d: %v", len(files), files)
	}
	if filepath.Base(files[0]) != "a.json" || filepath.Base(files[1]) != "b.json" {
		t.Errorf("Expected sorted [a.json b.json], got %v", files)
	}
}

func TestAcquireMutexesDeduplicates(t *testing.T) {
	unlock := acquireMutexes("/tmp/x", "/tmp/x/", "/tmp/y")
	unlock()
	unlock() // second release is a no-op

	mu := GetPathMutex("/tmp/x")
	if !mu.TryLock() {
		t.Fatal("Expected mutex to be released")
	}
	mu.Unlock()
}
