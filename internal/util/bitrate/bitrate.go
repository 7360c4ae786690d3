package bitrate

import "math"

// LimitVideoKbps returns the video bitrate (kbps) needed to fit limitKbit
// kibibits into durationSec seconds once audioKbps is reserved for audio.
// The result is floored and never drops below 1 kbps.
func LimitVideoKbps(limitKbit int64, durationSec float64, audioKbps int) int {
	if durationSec <= 0 {
		return 1
	}
	total := int64(math.Floor(float64(limitKbit) / durationSec))
	v := total - int64(audioKbps)
	if v < 1 {
		return 1
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}

// vorbisNominal maps libvorbis -q:a levels -1..10 to nominal kbps for
// stereo 44.1 kHz.
var vorbisNominal = [...]int{45, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 500}

// VorbisKbps returns the nominal bitrate of a vorbis quality level.
func VorbisKbps(q int) int {
	return vorbisNominal[Clamp(q, -1, 10)+1]
}

// Flags are advisory bitrate warnings for a given output resolution.
type Flags struct {
	TooSmall bool
	TooBig   bool
}

// Band is the recommended kbps range for a resolution.
type Band struct {
	Small int
	Big   int
}

// BandFor returns the recommended range for an output whose larger side is maxDim.
func BandFor(maxDim int) Band {
	switch {
	case maxDim >= 1920:
		return Band{Small: 4000, Big: 10000}
	case maxDim >= 1280:
		return Band{Small: 2000, Big: 5000}
	default:
		return Band{Small: 1000, Big: 20000}
	}
}

// Classify flags kbps that falls outside the band for maxDim.
func Classify(kbps, maxDim int) Flags {
	b := BandFor(maxDim)
	return Flags{
		TooSmall: kbps < b.Small,
		TooBig:   kbps > b.Big,
	}
}

// Clamp returns v constrained to [min, max].
func Clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
