package artifactindex

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestIndexMissingDirectoryYieldsEmpty(t *testing.T) {
	entries, err := Index(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty result, got %v", entries)
	}
}

func TestIndexHashesRegularFiles(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello artifact\n")
	if err := os.WriteFile(filepath.Join(dir, "report.txt"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := Index(dir)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %v, want 1", entries)
	}

	sum := sha256.Sum256(content)
	want := hex.EncodeToString(sum[:])
	if entries[0].SHA256 != want {
		t.Errorf("SHA256 = %q, want %q", entries[0].SHA256, want)
	}
	if entries[0].Bytes != int64(len(content)) {
		t.Errorf("Bytes = %d, want %d", entries[0].Bytes, len(content))
	}
	if entries[0].Name != "report.txt" {
		t.Errorf("Name = %q, want report.txt", entries[0].Name)
	}
}

func TestIndexSkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "subdir", "nested.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := Index(dir)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected subdirectory to be skipped, got %v", entries)
	}
}

func TestIndexSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	entries, err := Index(dir)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "real.txt" {
		t.Errorf("entries = %v, want only real.txt", entries)
	}
}
