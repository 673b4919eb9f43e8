package jsonutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFileMissingOrBlank(t *testing.T) {
	dir := t.TempDir()
	blank := filepath.Join(dir, "blank.json")
	if err := os.WriteFile(blank, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.json"), blank} {
		var v map[string]int
		found, err := ReadFile(path, &v)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", path, err)
		}
		if found || v != nil {
			t.Errorf("%s: expected not found, got %v %v", path, found, v)
		}
	}
}

func TestReadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var v map[string]int
	if _, err := ReadFile(path, &v); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestWriteFileRoundTripLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "order.json")

	if err := WriteFile(path, map[string][]string{"home": {"a", "b"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFile(path, map[string][]string{"home": {"b"}}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	var got map[string][]string
	found, err := ReadFile(path, &got)
	if err != nil || !found {
		t.Fatalf("read back: found=%v err=%v", found, err)
	}
	if len(got["home"]) != 1 || got["home"][0] != "b" {
		t.Errorf("unexpected content: %v", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the document, found %d entries", len(entries))
	}
}
