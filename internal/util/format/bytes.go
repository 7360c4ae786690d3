// Package format renders sizes, clip times and percentages for terminal output.
package format

import (
	"math"
	"strconv"
)

var iecUnits = []string{"KiB", "MiB", "GiB", "TiB"}

// HumanizeBytes renders a byte count with binary units (e.g., "1.5 MiB"), the
// same units the size limit is entered in.
func HumanizeBytes(b int64) string {
	const unit = 1024
	if b < 0 {
		return "-" + HumanizeBytes(-b)
	}
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit && exp < len(iecUnits)-1; n /= unit {
		div *= unit
		exp++
	}
	var buf [24]byte
	s := strconv.AppendFloat(buf[:0], float64(b)/float64(div), 'f', 1, 64)
	return string(s) + " " + iecUnits[exp]
}

// Timestamp renders seconds as [h:]mm:ss.mmm, the form accepted for start and
// duration.
func Timestamp(sec float64) string {
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return "--:--"
	}
	neg := sec < 0
	ms := int64(math.Round(math.Abs(sec) * 1000))
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	frac := ms % 1000

	out := make([]byte, 0, 16)
	if neg {
		out = append(out, '-')
	}
	if h > 0 {
		out = strconv.AppendInt(out, h, 10)
		out = append(out, ':')
	}
	out = appendPadded(out, m, 2)
	out = append(out, ':')
	out = appendPadded(out, s, 2)
	out = append(out, '.')
	out = appendPadded(out, frac, 3)
	return string(out)
}

// Percent renders p with one decimal, or "--" when p is unknown (negative).
func Percent(p float64) string {
	if p < 0 || math.IsNaN(p) {
		return "--"
	}
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

func appendPadded(dst []byte, v int64, width int) []byte {
	s := strconv.FormatInt(v, 10)
	for i := len(s); i < width; i++ {
		dst = append(dst, '0')
	}
	return append(dst, s...)
}
