package encoder

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConcatList(t *testing.T) {
	got := ConcatList("/tmp/it's.webm", "/tmp/main.webm")
	want := "file '/tmp/it'\\''s.webm'\nfile '/tmp/main.webm'\n"
	if got != want {
		t.Errorf("ConcatList() = %q, want %q", got, want)
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "concat.txt")
	a, b := filepath.Join(dir, "a.webm"), filepath.Join(dir, "b.webm")
	if err := WriteConcatList(list, a, b); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(list)
	if err != nil {
		t.Fatal(err)
	}
	if want := "file '" + a + "'\nfile '" + b + "'\n"; string(data) != want {
		t.Errorf("list = %q, want %q", data, want)
	}
}
