package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestFileSystemStore(t *testing.T) {
	dir := t.TempDir()
	store := NewFileSystemStore(dir)

	if err := store.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}

	t.Run("save and read back", func(t *testing.T) {
		content := "hello, blob"
		n, err := store.Save("abc123", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if n != int64(len(content)) {
			t.Errorf("Save returned %d bytes, want %d", n, len(content))
		}

		path, err := store.GetPath("abc123")
		if err != nil {
			t.Fatalf("GetPath failed: %v", err)
		}
		if path != filepath.Join(dir, "abc123") {
			t.Errorf("unexpected path %s", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(data) != content {
			t.Errorf("got %q, want %q", data, content)
		}
	})

	t.Run("get path for missing blob", func(t *testing.T) {
		if _, err := store.GetPath("nope"); err == nil {
			t.Error("expected error for missing blob")
		}
	})

	t.Run("delete", func(t *testing.T) {
		if _, err := store.Save("gone", strings.NewReader("x")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := store.Delete("gone"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.GetPath("gone"); err == nil {
			t.Error("blob still present after delete")
		}
	})

	t.Run("delete missing blob is not an error", func(t *testing.T) {
		if err := store.Delete("never-existed"); err != nil {
			t.Errorf("Delete returned error: %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		ids, err := store.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		sort.Strings(ids)
		if len(ids) != 1 || ids[0] != "abc123" {
			t.Errorf("got %v, want [abc123]", ids)
		}
	})
}

func TestEnsureDirCreatesNested(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	store := NewFileSystemStore(dir)

	if err := store.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("path exists but is not a directory")
	}
}
