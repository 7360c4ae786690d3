package encoder

import (
	"os"
	"path/filepath"
	"strings"
)

// EscapeConcatPath escapes a path for a single-quoted concat list entry.
func EscapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

// ConcatList renders the concat demuxer manifest for segments, in order.
func ConcatList(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		if abs, err := filepath.Abs(s); err == nil {
			s = abs
		}
		b.WriteString("file '")
		b.WriteString(EscapeConcatPath(s))
		b.WriteString("'\n")
	}
	return b.String()
}

// WriteConcatList writes the manifest to listPath.
func WriteConcatList(listPath string, segments ...string) error {
	return os.WriteFile(listPath, []byte(ConcatList(segments...)), 0o644)
}
