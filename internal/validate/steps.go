package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"webmcut/internal/encoder"
	"webmcut/internal/model"
	"webmcut/internal/util"
	"webmcut/internal/util/media"
)

// Field names used in FieldError.
const (
	FieldInput        = "input"
	FieldOutput       = "output"
	FieldTemp         = "temp"
	FieldVideoTrack   = "video_track"
	FieldCrop         = "crop"
	FieldScale        = "scale"
	FieldSubtitles    = "subtitles"
	FieldAudioTrack   = "audio_track"
	FieldFadeIn       = "fade_in"
	FieldFadeOut      = "fade_out"
	FieldAmplify      = "amplify"
	FieldStart        = "start"
	FieldDuration     = "duration"
	FieldVideoCodec   = "video_codec"
	FieldAudioCodec   = "audio_codec"
	FieldQuality      = "quality"
	FieldLimit        = "limit"
	FieldBitrate      = "bitrate"
	FieldMode         = "mode"
	FieldAudioBitrate = "audio_bitrate"
	FieldTwoPass      = "two_pass"
	FieldSpeed        = "speed"
	FieldPreview      = "preview"
	FieldRawArgs      = "raw_args"
)

// Defaults applied to unset fields.
const (
	DefaultQualityVP9   = 31
	DefaultQualityVP8   = 10
	DefaultLimitMiB     = 8.0
	DefaultBitrate      = 2000
	DefaultOpusKbps     = 128
	DefaultVorbisLevel  = 4
	DefaultSpeed        = 1
	MaxQuality          = 63
	durationTolerance   = 1e-6
	shortFragmentSecond = 5.0
)

// state carries partial results between steps.
type state struct {
	raw RawOptions
	src model.Source
	o   model.EncodeOptions

	quality   int
	limitKbit int64
	kbps      int
	warnings  []string
}

func (s *state) warn(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

type step struct {
	field string
	deps  []string
	run   func(*state) error
}

// steps are listed in declaration order, which breaks ties in the
// topological order.
var steps = []step{
	{field: FieldInput, run: checkInput},
	{field: FieldVideoTrack, deps: []string{FieldInput}, run: checkVideoTrack},
	{field: FieldCrop, deps: []string{FieldVideoTrack}, run: checkCrop},
	{field: FieldScale, run: checkScale},
	{field: FieldSubtitles, deps: []string{FieldInput}, run: checkSubtitles},
	{field: FieldAudioTrack, deps: []string{FieldInput}, run: checkAudioTrack},
	{field: FieldStart, deps: []string{FieldInput}, run: checkStart},
	{field: FieldDuration, deps: []string{FieldStart}, run: checkDuration},
	{field: FieldFadeIn, deps: []string{FieldAudioTrack, FieldDuration}, run: checkFadeIn},
	{field: FieldFadeOut, deps: []string{FieldAudioTrack, FieldDuration}, run: checkFadeOut},
	{field: FieldAmplify, deps: []string{FieldAudioTrack}, run: checkAmplify},
	{field: FieldVideoCodec, run: checkVideoCodec},
	{field: FieldAudioCodec, run: checkAudioCodec},
	{field: FieldQuality, deps: []string{FieldVideoCodec}, run: checkQuality},
	{field: FieldLimit, run: checkLimit},
	{field: FieldBitrate, run: checkBitrate},
	{field: FieldMode, deps: []string{FieldQuality, FieldLimit, FieldBitrate}, run: checkMode},
	{field: FieldAudioBitrate, deps: []string{FieldAudioCodec, FieldAudioTrack}, run: checkAudioBitrate},
	{field: FieldTwoPass, deps: []string{FieldMode}, run: checkTwoPass},
	{field: FieldSpeed, run: checkSpeed},
	{field: FieldPreview, deps: []string{FieldInput}, run: checkPreview},
	{field: FieldOutput, deps: []string{FieldInput}, run: checkOutput},
	{field: FieldTemp, run: checkTemp},
	{field: FieldRawArgs, run: checkRawArgs},
}

func checkInput(s *state) error {
	if strings.TrimSpace(s.raw.Input) == "" {
		return errors.New("an input file is required")
	}
	if len(s.src.Video) == 0 {
		return errors.New("input has no video stream")
	}
	if s.src.Duration <= 0 {
		return errors.New("could not determine the input duration")
	}
	s.o.Input = s.raw.Input
	return nil
}

func checkVideoTrack(s *state) error {
	v, _, err := requireInt(s.raw.VideoTrack)
	if err != nil {
		return err
	}
	if v < 0 || v >= len(s.src.Video) {
		return fmt.Errorf("must be between 0 and %d", len(s.src.Video)-1)
	}
	vs := s.src.Video[v]
	s.o.VideoTrack = v
	s.o.SourceWidth = vs.Width
	s.o.SourceHeight = vs.Height
	s.o.FrameRate = vs.FrameRate
	return nil
}

func checkCrop(s *state) error {
	c, err := parseCrop(s.raw.Crop)
	if err != nil || c == nil {
		return err
	}
	sw, sh := s.o.SourceWidth, s.o.SourceHeight
	x, y := 0, 0
	if c.X != nil {
		x = *c.X
	}
	if c.Y != nil {
		y = *c.Y
	}
	if sw > 0 && c.W+x > sw {
		return fmt.Errorf("width plus x offset exceeds the source width %d", sw)
	}
	if sh > 0 && c.H+y > sh {
		return fmt.Errorf("height plus y offset exceeds the source height %d", sh)
	}
	s.o.Crop = c
	return nil
}

func checkScale(s *state) error {
	sc, err := parseScale(s.raw.Scale)
	if err != nil {
		return err
	}
	s.o.Scale = sc
	return nil
}

func checkSubtitles(s *state) error {
	if f := strings.TrimSpace(s.raw.SubtitleFile); f != "" {
		fi, err := os.Stat(f)
		if err != nil {
			return fmt.Errorf("subtitle file %s does not exist", f)
		}
		if fi.IsDir() {
			return fmt.Errorf("%s is a directory", f)
		}
		s.o.Subtitles = model.Subtitles{Burn: true, File: f}
		return nil
	}
	v, set, err := requireInt(s.raw.SubtitleTrack)
	if err != nil || !set {
		return err
	}
	if len(s.src.Subtitles) == 0 {
		return errors.New("input has no subtitle streams")
	}
	if v < 0 || v >= len(s.src.Subtitles) {
		return fmt.Errorf("must be between 0 and %d", len(s.src.Subtitles)-1)
	}
	s.o.Subtitles = model.Subtitles{Burn: true, Track: v}
	return nil
}

func checkAudioTrack(s *state) error {
	raw := strings.ToLower(strings.TrimSpace(s.raw.AudioTrack))
	switch raw {
	case "":
		if len(s.src.Audio) == 0 {
			s.o.AudioTrack = model.NoAudio
		}
		return nil
	case "none", "-1":
		s.o.AudioTrack = model.NoAudio
		return nil
	}
	v, _, err := requireInt(raw)
	if err != nil {
		return err
	}
	if len(s.src.Audio) == 0 {
		return errors.New(`input has no audio streams; use "none"`)
	}
	if v < 0 || v >= len(s.src.Audio) {
		return fmt.Errorf("must be between 0 and %d, or none", len(s.src.Audio)-1)
	}
	s.o.AudioTrack = v
	return nil
}

func checkStart(s *state) error {
	v, _, err := requireTime(s.raw.Start)
	if err != nil {
		return err
	}
	if v >= s.src.Duration {
		return fmt.Errorf("must be before the end of the input (%.3fs)", s.src.Duration)
	}
	s.o.Start = v
	return nil
}

func checkDuration(s *state) error {
	rest := s.src.Duration - s.o.Start
	v, set, err := requireTime(s.raw.Duration)
	if err != nil {
		return err
	}
	if !set {
		s.o.Duration = rest
		return nil
	}
	if v <= 0 {
		return errors.New("must be greater than 0")
	}
	if v > rest+durationTolerance {
		return fmt.Errorf("must be at most %.3fs from the start time", rest)
	}
	s.o.Duration = v
	return nil
}

func checkFade(raw string, s *state) (float64, error) {
	v, set, err := requireFloat(raw)
	if err != nil || !set {
		return 0, err
	}
	if v <= 0 {
		return 0, errors.New("must be greater than 0")
	}
	if v > s.o.Duration {
		return 0, errors.New("must not be longer than the fragment")
	}
	return v, nil
}

func checkFadeIn(s *state) error {
	v, err := checkFade(s.raw.FadeIn, s)
	s.o.FadeIn = v
	return err
}

func checkFadeOut(s *state) error {
	v, err := checkFade(s.raw.FadeOut, s)
	s.o.FadeOut = v
	return err
}

func checkAmplify(s *state) error {
	v, set, err := requireInt(s.raw.Amplify)
	if err != nil || !set {
		return err
	}
	if v < 1 || v > 64 {
		return errors.New("must be between 1 and 64")
	}
	s.o.Amplify = v
	return nil
}

func checkVideoCodec(s *state) error {
	switch c := strings.ToLower(strings.TrimSpace(s.raw.VideoCodec)); c {
	case "", string(model.VP9):
		s.o.VideoCodec = model.VP9
	case string(model.VP8):
		s.o.VideoCodec = model.VP8
	default:
		return fmt.Errorf("unknown codec %q (valid: vp9|vp8)", c)
	}
	return nil
}

func checkAudioCodec(s *state) error {
	switch c := strings.ToLower(strings.TrimSpace(s.raw.AudioCodec)); c {
	case "", string(model.Opus):
		s.o.AudioCodec = model.Opus
	case string(model.Vorbis):
		s.o.AudioCodec = model.Vorbis
	default:
		return fmt.Errorf("unknown codec %q (valid: opus|vorbis)", c)
	}
	return nil
}

func checkQuality(s *state) error {
	v, set, err := requireInt(s.raw.Quality)
	if err != nil {
		return err
	}
	lo := encoder.MinQuality(s.o.VideoCodec)
	if !set {
		v = DefaultQualityVP9
		if s.o.VideoCodec == model.VP8 {
			v = DefaultQualityVP8
		}
	}
	if v < lo || v > MaxQuality {
		return fmt.Errorf("must be between %d and %d for %s", lo, MaxQuality, s.o.VideoCodec)
	}
	s.quality = v
	return nil
}

func checkLimit(s *state) error {
	v, set, err := requireFloat(s.raw.Limit)
	if err != nil {
		return err
	}
	if !set {
		v = DefaultLimitMiB
	}
	if v <= 0 {
		return errors.New("must be greater than 0 MiB")
	}
	if v > model.MaxLimitMiB {
		return fmt.Errorf("must be at most %d MiB", int64(model.MaxLimitMiB))
	}
	s.limitKbit = model.MiBToKbit(v)
	if s.limitKbit < 1 {
		return errors.New("is too small")
	}
	return nil
}

func checkBitrate(s *state) error {
	v, set, err := requireInt(s.raw.Bitrate)
	if err != nil {
		return err
	}
	if !set {
		v = DefaultBitrate
	}
	if v < 1 {
		return errors.New("must be at least 1 kbps")
	}
	s.kbps = v
	return nil
}

func checkMode(s *state) error {
	s.o.Mode = model.ModeFromFlags(s.raw.ModeCRF, s.raw.ModeLimit, s.quality, s.limitKbit, s.kbps)
	return nil
}

func checkAudioBitrate(s *state) error {
	v, set, err := requireInt(s.raw.AudioBitrate)
	if err != nil {
		return err
	}
	if s.o.AudioCodec == model.Vorbis {
		if !set {
			v = DefaultVorbisLevel
		}
		if v < -1 || v > 10 {
			return errors.New("vorbis quality must be between -1 and 10")
		}
	} else {
		if !set {
			v = DefaultOpusKbps
		}
		if v < 6 || v > 510 {
			return errors.New("opus bitrate must be between 6 and 510 kbps")
		}
	}
	s.o.AudioBitrate = v
	return nil
}

func checkTwoPass(s *state) error {
	s.o.TwoPass = s.raw.TwoPass && s.o.Mode.Kind() != model.ModeCRF
	return nil
}

func checkSpeed(s *state) error {
	v, set, err := requireInt(s.raw.Speed)
	if err != nil {
		return err
	}
	if !set {
		v = DefaultSpeed
	}
	if v < 0 || v > 5 {
		return errors.New("must be between 0 and 5")
	}
	s.o.Speed = v
	return nil
}

func checkPreview(s *state) error {
	img := strings.TrimSpace(s.raw.PreviewImage)
	at, set, err := requireTime(s.raw.PreviewAt)
	if err != nil {
		return err
	}
	switch {
	case img != "" && set:
		return errors.New("use either a preview time or a preview image")
	case img != "":
		if _, err := os.Stat(img); err != nil {
			return fmt.Errorf("preview image %s does not exist", img)
		}
		s.o.Preview = &model.Preview{Image: img}
	case set:
		if at >= s.src.Duration {
			return fmt.Errorf("preview time must be before the end of the input (%.3fs)", s.src.Duration)
		}
		s.o.Preview = &model.Preview{Time: at}
	}
	return nil
}

func checkOutput(s *state) error {
	out := strings.TrimSpace(s.raw.Output)
	if out == "" {
		free, err := media.AllocateOutputPath(media.DefaultOutputPath(s.o.Input, s.raw.OutDir))
		if err != nil {
			return err
		}
		out = free
	}
	out = filepath.Clean(out)
	if abs(out) == abs(s.o.Input) {
		return errors.New("output would overwrite the input")
	}
	if !strings.EqualFold(filepath.Ext(out), media.Ext) {
		s.warn("output %s does not end in %s; it is written as WebM anyway", out, media.Ext)
	}
	if err := util.CheckWritableDir(filepath.Dir(out)); err != nil {
		return err
	}
	s.o.Output = out
	return nil
}

func checkTemp(s *state) error {
	base := strings.TrimSpace(s.raw.TempDir)
	if base == "" {
		base = util.DefaultTempBase()
		if err := util.EnsureDir(base); err != nil {
			return fmt.Errorf("create %s: %w", base, err)
		}
	}
	return util.CheckWritableDir(base)
}

func checkRawArgs(s *state) error {
	if strings.TrimSpace(s.raw.RawArgs) == "" {
		return nil
	}
	tokens, exact := encoder.SplitArgs(s.raw.RawArgs)
	if !exact {
		s.warn("raw arguments have an unmatched quote; they were split on whitespace")
	}
	if tokens == nil {
		tokens = []string{}
	}
	s.o.Override = tokens
	return nil
}

func abs(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}
