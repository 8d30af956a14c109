package io

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSource_Walk(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.txt", "skip.exe", ".hidden/c.txt", "sub/d.MD"} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	src := NewFileSource([]string{"pdf", ".txt", "md"})
	got, err := src.Walk([]string{dir})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "sub/d.MD"),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	f, err := src.Read(want[0])
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if f.Name != "a.txt" || string(f.Content) != "x" {
		t.Fatalf("unexpected file %+v", f)
	}
}
