package dirs

import (
	"path/filepath"
	"testing"
)

func TestResolve_Linux(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	got, err := configBase.resolve("linux")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(xdg, "webmcut"); got != want {
		t.Errorf("config dir = %q, want %q", got, want)
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", "")
	got, err = cacheBase.resolve("linux")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".cache", "webmcut"); got != want {
		t.Errorf("cache dir = %q, want %q", got, want)
	}
}

func TestResolve_Darwin(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := configBase.resolve("darwin")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, "Library", "Application Support", "webmcut"); got != want {
		t.Errorf("config dir = %q, want %q", got, want)
	}
}

func TestResolve_Fallback(t *testing.T) {
	b := base{fallback: func() (string, error) { return "/appdata", nil }}
	got, err := b.resolve("windows")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/appdata", "webmcut"); got != want {
		t.Errorf("dir = %q, want %q", got, want)
	}
}

func TestEnsure(t *testing.T) {
	if err := Ensure(""); err == nil {
		t.Error("Ensure(\"\") should fail")
	}
	if err := Ensure(filepath.Join(t.TempDir(), "a", "b")); err != nil {
		t.Errorf("Ensure: %v", err)
	}
}
