package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"webmcut/internal/util"
)

// Ext is the container extension of every output.
const Ext = ".webm"

var collisionSuffix = regexp.MustCompile(`-\d+$`)

// StripCollisionSuffix removes a trailing "-<N>" from the file name stem.
func StripCollisionSuffix(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return collisionSuffix.ReplaceAllString(stem, "") + ext
}

// AllocateOutputPath returns the first of base.ext, base-2.ext, base-3.ext, …
// that does not exist. Any collision suffix on path is stripped first.
// Nothing is reserved on disk; a concurrent writer can still win the race.
func AllocateOutputPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty output path")
	}
	path = StripCollisionSuffix(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	for n := 1; ; n++ {
		candidate := path
		if n > 1 {
			candidate = stem + "-" + strconv.Itoa(n) + ext
		}
		_, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", candidate, err)
		}
	}
}

// OutputBasename derives a safe stem for the output from the input file name.
func OutputBasename(input string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return util.SanitizeFilename(base)
}

// DefaultOutputPath places the output next to the input, or in outDir when set.
func DefaultOutputPath(input, outDir string) string {
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, OutputBasename(input)+Ext)
}
