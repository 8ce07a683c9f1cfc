package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := ExpandHome("~/models")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != filepath.Join(home, "models") {
		t.Fatalf("expected %s, got %s", filepath.Join(home, "models"), got)
	}
	// non-tilde paths pass through unchanged
	if got, _ := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("expected pass-through, got %s", got)
	}
	if got, _ := ExpandHome(""); got != "" {
		t.Fatalf("expected empty pass-through, got %q", got)
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	if PathExists(p) {
		t.Fatalf("expected missing path")
	}
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !PathExists(p) {
		t.Fatalf("expected existing path")
	}
}

func TestEnsureParentDirAndReplaceFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "contexts", "out.onnx")
	if err := EnsureParentDir(dst); err != nil {
		t.Fatalf("ensure parent: %v", err)
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, []byte("artifact"), 0o644); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	if err := ReplaceFile(tmp, dst); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if PathExists(tmp) {
		t.Fatalf("temp file should be gone after rename")
	}
	b, err := os.ReadFile(dst)
	if err != nil || string(b) != "artifact" {
		t.Fatalf("read dst: %v %q", err, string(b))
	}
}

func TestStem(t *testing.T) {
	if s := Stem("/a/b/model.onnx"); s != "model" {
		t.Fatalf("expected model, got %s", s)
	}
	if s := Stem("plain"); s != "plain" {
		t.Fatalf("expected plain, got %s", s)
	}
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	if err := os.WriteFile(p, make([]byte, 42), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if n := FileSize(p); n != 42 {
		t.Fatalf("expected 42, got %d", n)
	}
	if n := FileSize(filepath.Join(dir, "missing")); n != 0 {
		t.Fatalf("expected 0 for missing, got %d", n)
	}
}
