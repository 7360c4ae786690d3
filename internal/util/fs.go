package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultTempBase is the parent of job workdirs when none is configured.
func DefaultTempBase() string {
	return filepath.Join(os.TempDir(), "webmcut")
}

// MakeTempWorkdir creates a unique directory under base (or DefaultTempBase
// when base is empty) named after prefix.
func MakeTempWorkdir(base, prefix string) (string, error) {
	if base == "" {
		base = DefaultTempBase()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(base, prefix+"-")
	if err != nil {
		return "", err
	}
	return dir, nil
}

// EnsureDir creates the directory path if it does not exist.
func EnsureDir(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// RemoveIfExists deletes the file if present.
func RemoveIfExists(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveGlob deletes every file matching pattern. Missing files are not an error.
func RemoveGlob(pattern string) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range matches {
		if err := RemoveIfExists(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CheckWritableDir verifies that dir exists, is a directory and accepts new
// files. It writes and removes a probe file.
func CheckWritableDir(dir string) error {
	if dir == "" {
		dir = "."
	}
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory %s does not exist", dir)
		}
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".webmcut-probe-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable", dir)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

const (
	maxNameRunes    = 200
	unsafeNameRunes = `[]/\:*?"<>|#%{}$!@+^~=&;'` + "`"
)

// SanitizeFilename turns s into a portable file name. Whitespace, control
// and shell-special runes become '_', runs of '_' collapse to one, and the
// result is capped at maxNameRunes runes.
func SanitizeFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	n, prev := 0, rune(0)
	for _, r := range s {
		if n == maxNameRunes {
			break
		}
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(unsafeNameRunes, r) {
			r = '_'
		}
		if r == '_' && prev == '_' {
			continue
		}
		b.WriteRune(r)
		prev = r
		n++
	}
	if out := strings.Trim(b.String(), "._-"); out != "" {
		return out
	}
	return "untitled"
}
