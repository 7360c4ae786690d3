package validate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"webmcut/internal/model"
)

// RawOptions is the option set as entered by the user. Text fields are
// coerced and range-checked by Validate; empty text means "use the default".
type RawOptions struct {
	Input   string
	Output  string // empty derives a free name from Input inside OutDir
	OutDir  string
	TempDir string // parent of job workdirs; empty uses the system temp dir

	VideoTrack    string
	Crop          string // W:H[:X:Y], any part may be left empty
	Scale         string // W:H, W, :H; -1 keeps the aspect ratio
	Deinterlace   bool
	SubtitleTrack string // embedded subtitle stream to burn in
	SubtitleFile  string // external subtitle file to burn in

	AudioTrack string // stream index or "none"
	FadeIn     string
	FadeOut    string
	Amplify    string

	Start    string
	Duration string

	VideoCodec   string
	AudioCodec   string
	ModeCRF      bool
	ModeLimit    bool
	Quality      string
	Limit        string // MiB
	Bitrate      string // kbps
	AudioBitrate string
	TwoPass      bool
	Speed        string

	PreviewAt    string
	PreviewImage string

	// RawArgs is the hand-edited codec/filter block. When non-empty it
	// replaces the compiled block verbatim.
	RawArgs string
}

var errNotNumber = errors.New("must be a number")

// requireInt coerces s to an integer. set is false for empty text.
func requireInt(s string) (v int, set bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	v, err = strconv.Atoi(s)
	if err != nil {
		return 0, true, errors.New("must be an integer")
	}
	return v, true, nil
}

// requireFloat coerces s to a finite decimal number.
func requireFloat(s string) (v float64, set bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true, errNotNumber
	}
	return v, true, nil
}

// requireTime coerces s to seconds. It accepts plain seconds as well as
// [[hh:]mm:]ss[.frac].
func requireTime(s string) (v float64, set bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, true, errors.New("must be seconds or hh:mm:ss")
	}
	for i, p := range parts {
		x, err := strconv.ParseFloat(p, 64)
		if err != nil || x < 0 || strings.ContainsAny(p, "eE+-") {
			return 0, true, errors.New("must be seconds or hh:mm:ss")
		}
		if i > 0 && x >= 60 {
			return 0, true, fmt.Errorf("%q is out of range in a time", p)
		}
		if i < len(parts)-1 && x != float64(int(x)) {
			return 0, true, errors.New("only seconds may have a fraction")
		}
		v = v*60 + x
	}
	return v, true, nil
}

// parseCrop parses W:H[:X:Y] with optional parts.
func parseCrop(s string) (*model.Crop, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 4 {
		return nil, errors.New("must be W:H[:X:Y]")
	}
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	var c model.Crop
	var err error
	if c.W, err = cropSide(parts[0], "width"); err != nil {
		return nil, err
	}
	if c.H, err = cropSide(parts[1], "height"); err != nil {
		return nil, err
	}
	if c.X, err = cropOffset(parts[2], "x"); err != nil {
		return nil, err
	}
	if c.Y, err = cropOffset(parts[3], "y"); err != nil {
		return nil, err
	}
	if c.W == 0 && c.H == 0 && c.X == nil && c.Y == nil {
		return nil, nil
	}
	return &c, nil
}

func cropSide(s, name string) (int, error) {
	v, set, err := requireInt(s)
	if err != nil {
		return 0, fmt.Errorf("%s %w", name, err)
	}
	if set && v < 1 {
		return 0, fmt.Errorf("%s must be at least 1", name)
	}
	return v, nil
}

func cropOffset(s, name string) (*int, error) {
	v, set, err := requireInt(s)
	if err != nil {
		return nil, fmt.Errorf("%s %w", name, err)
	}
	if !set {
		return nil, nil
	}
	if v < 0 {
		return nil, fmt.Errorf("%s must not be negative", name)
	}
	return &v, nil
}

// parseScale parses W:H, W or :H. A side of -1 (or empty) keeps the aspect.
func parseScale(s string) (model.Scale, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.Scale{}, nil
	}
	w, h, _ := strings.Cut(s, ":")
	var sc model.Scale
	var err error
	if sc.W, err = scaleSide(w, "width"); err != nil {
		return model.Scale{}, err
	}
	if sc.H, err = scaleSide(h, "height"); err != nil {
		return model.Scale{}, err
	}
	if sc.W == 0 && sc.H == 0 {
		return model.Scale{}, errors.New("needs a width or a height")
	}
	return sc, nil
}

func scaleSide(s, name string) (int, error) {
	v, set, err := requireInt(s)
	if err != nil {
		return 0, fmt.Errorf("%s %w", name, err)
	}
	if !set || v == -1 {
		return 0, nil
	}
	if v < 1 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return v, nil
}
