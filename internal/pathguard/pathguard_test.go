package pathguard

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateRejectsEmptyPath(t *testing.T) {
	result := Validate("", []string{"/tmp"}, nil)
	if result.Allowed {
		t.Error("empty path must not be allowed")
	}
}

func TestValidateRejectsNullByte(t *testing.T) {
	result := Validate("/tmp/foo\x00bar", []string{"/tmp"}, nil)
	if result.Allowed {
		t.Error("path with null byte must not be allowed")
	}
}

func TestValidateSiblingPrefixIsNotUnderRoot(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "a")
	sibling := filepath.Join(dir, "ab")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(sibling, 0o755); err != nil {
		t.Fatal(err)
	}

	result := Validate(sibling, []string{root}, nil)
	if result.Allowed {
		t.Errorf("path %q must not be considered under root %q", sibling, root)
	}
}

func TestValidateAllowsPathUnderRoot(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "workspace")
	nested := filepath.Join(root, "src", "main.go")
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}

	result := Validate(nested, []string{root}, nil)
	if !result.Allowed {
		t.Errorf("path %q should be allowed under root %q: %s", nested, root, result.Reason)
	}
}

func TestValidateRejectsPathOutsideAllRoots(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "workspace")
	outside := filepath.Join(dir, "elsewhere", "file.txt")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(outside), 0o755); err != nil {
		t.Fatal(err)
	}

	result := Validate(outside, []string{root}, nil)
	if result.Allowed {
		t.Error("path outside every allowed root must not be allowed")
	}
}

func TestValidateRejectsSymlinkEscapingRoot(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "workspace")
	outside := t.TempDir()
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}

	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatal(err)
	}

	result := Validate(filepath.Join(link, "secret.txt"), []string{root}, nil)
	if result.Allowed {
		t.Error("path escaping root via symlink must not be allowed")
	}
}

func TestValidateDenyGlobBlocksMatch(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "workspace")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(root, "secrets.env")
	result := Validate(target, []string{root}, []string{"*.env"})
	if result.Allowed {
		t.Error("path matching deny glob must not be allowed")
	}
}

func TestValidateDenyGlobMatchesDotfile(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "workspace")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(root, ".env")
	result := Validate(target, []string{root}, []string{"**/.env", ".env"})
	if result.Allowed {
		t.Error("dotfile matching deny glob must not be allowed")
	}
}

func TestValidateAllowsNotYetCreatedPathUnderRoot(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "workspace")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(root, "out", "new-artifact.txt")
	result := Validate(target, []string{root}, nil)
	if !result.Allowed {
		t.Errorf("not-yet-created path under root should be allowed: %s", result.Reason)
	}
}
