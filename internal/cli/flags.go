// Package cli maps command-line flags onto the raw option set.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"webmcut/internal/config"
	"webmcut/internal/validate"
)

// Mode names accepted by --mode.
const (
	ModeCRF     = "crf"
	ModeLimit   = "limit"
	ModeBitrate = "bitrate"
)

// BindEncodeFlags registers the option flags shared by encode, args and tui.
// Every value flag is text so that validation reports it per field.
func BindEncodeFlags(fs *pflag.FlagSet) {
	fs.StringP("output", "O", "", "Output file (default: a free <input>.webm name in --out-dir)")

	fs.String("video-track", "", "Video stream index")
	fs.String("crop", "", "Crop W:H[:X:Y]")
	fs.String("scale", "", "Scale W:H, W or :H (-1 keeps the aspect ratio)")
	fs.Bool("deinterlace", false, "Deinterlace with yadif")
	fs.String("subtitle-track", "", "Burn in this embedded subtitle stream")
	fs.String("subtitle-file", "", "Burn in this subtitle file")

	fs.String("audio-track", "", `Audio stream index, or "none" to drop audio`)
	fs.String("fade-in", "", "Audio fade-in seconds")
	fs.String("fade-out", "", "Audio fade-out seconds")
	fs.String("amplify", "", "Audio gain factor 1-64 (linear volume multiplier, not dB)")

	fs.StringP("start", "s", "", "Start time [[hh:]mm:]ss[.frac]")
	fs.StringP("duration", "t", "", "Fragment duration [[hh:]mm:]ss[.frac] (default: to the end)")

	fs.String("video-codec", "", "vp9 or vp8")
	fs.String("audio-codec", "", "opus or vorbis")
	fs.String("mode", "", "Rate control: crf, limit or bitrate (default: inferred from --quality/--limit, else bitrate)")
	fs.StringP("quality", "q", "", "CRF quality (lower is better)")
	fs.String("limit", "", "Size limit in MiB")
	fs.StringP("bitrate", "b", "", "Video bitrate in kbps")
	fs.String("audio-bitrate", "", "Opus kbps or Vorbis quality level")
	fs.Bool("two-pass", false, "Two-pass encode (ignored in CRF mode)")
	fs.String("speed", "", "libvpx -cpu-used")

	fs.String("preview-at", "", "Prepend a still frame taken at this source time")
	fs.String("preview-image", "", "Prepend this image instead of a source frame")
	fs.String("raw-args", "", "Replace the codec/filter arguments verbatim")
}

// RawOptions reads the encode flags for input. Codec and speed fall back to
// the configured defaults; paths fall back to the configured directories.
func RawOptions(fs *pflag.FlagSet, input string, s config.Settings) (validate.RawOptions, error) {
	get := func(name string) string {
		v, _ := fs.GetString(name)
		return v
	}
	flag := func(name string) bool {
		v, _ := fs.GetBool(name)
		return v
	}

	raw := validate.RawOptions{
		Input:   input,
		Output:  get("output"),
		OutDir:  s.OutDir,
		TempDir: s.TempDir,

		VideoTrack:    get("video-track"),
		Crop:          get("crop"),
		Scale:         get("scale"),
		Deinterlace:   flag("deinterlace"),
		SubtitleTrack: get("subtitle-track"),
		SubtitleFile:  get("subtitle-file"),

		AudioTrack: get("audio-track"),
		FadeIn:     get("fade-in"),
		FadeOut:    get("fade-out"),
		Amplify:    get("amplify"),

		Start:    get("start"),
		Duration: get("duration"),

		VideoCodec:   get("video-codec"),
		AudioCodec:   get("audio-codec"),
		Quality:      get("quality"),
		Limit:        get("limit"),
		Bitrate:      get("bitrate"),
		AudioBitrate: get("audio-bitrate"),
		TwoPass:      flag("two-pass"),
		Speed:        get("speed"),

		PreviewAt:    get("preview-at"),
		PreviewImage: get("preview-image"),
		RawArgs:      get("raw-args"),
	}
	if raw.VideoCodec == "" {
		raw.VideoCodec = s.VideoCodec
	}
	if raw.AudioCodec == "" {
		raw.AudioCodec = s.AudioCodec
	}
	if raw.Speed == "" && s.Speed != 0 {
		raw.Speed = fmt.Sprint(s.Speed)
	}

	mode := strings.ToLower(strings.TrimSpace(get("mode")))
	if mode == "" {
		mode = inferMode(raw)
	}
	switch mode {
	case ModeCRF:
		raw.ModeCRF = true
	case ModeLimit:
		raw.ModeLimit = true
	case ModeBitrate:
	default:
		return raw, fmt.Errorf("invalid --mode: %q (valid: crf|limit|bitrate)", mode)
	}
	return raw, nil
}

func inferMode(raw validate.RawOptions) string {
	switch {
	case strings.TrimSpace(raw.Limit) != "":
		return ModeLimit
	case strings.TrimSpace(raw.Quality) != "":
		return ModeCRF
	default:
		return ModeBitrate
	}
}
