package encoder

import (
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"

	"webmcut/internal/model"
	"webmcut/internal/util/bitrate"
)

// NullDevice is the platform null sink used as pass 1 output.
func NullDevice() string {
	if runtime.GOOS == "windows" {
		return "NUL"
	}
	return "/dev/null"
}

func videoEncoder(c model.VideoCodec) string {
	if c == model.VP8 {
		return "libvpx"
	}
	return "libvpx-vp9"
}

// MinQuality is the best CRF value accepted for a codec.
func MinQuality(c model.VideoCodec) int {
	if c == model.VP8 {
		return 4
	}
	return 0
}

// AudioKbps is the bitrate reserved for audio in size calculations.
func AudioKbps(o model.EncodeOptions) int {
	if !o.HasAudio() {
		return 0
	}
	if o.AudioCodec == model.Vorbis {
		return bitrate.VorbisKbps(o.AudioBitrate)
	}
	return o.AudioBitrate
}

// VideoKbps is the target video bitrate, or 0 in CRF mode.
func VideoKbps(o model.EncodeOptions) int {
	switch o.Mode.Kind() {
	case model.ModeLimit:
		return bitrate.LimitVideoKbps(o.Mode.LimitKbit(), o.Duration, AudioKbps(o))
	case model.ModeBitrate:
		return o.Mode.Kbps()
	default:
		return 0
	}
}

// OutputSize predicts the encoded frame size from source, crop and scale.
// It returns zeros when the source size is unknown.
func OutputSize(o model.EncodeOptions) (w, h int) {
	w, h = o.SourceWidth, o.SourceHeight
	if c := o.Crop; c != nil {
		if c.W > 0 {
			w = c.W
		}
		if c.H > 0 {
			h = c.H
		}
	}
	sw, sh := o.Scale.W, o.Scale.H
	switch {
	case sw > 0 && sh > 0:
		w, h = sw, sh
	case sw > 0 && w > 0:
		h = int(math.Round(float64(h) * float64(sw) / float64(w)))
		w = sw
	case sh > 0 && h > 0:
		w = int(math.Round(float64(w) * float64(sh) / float64(h)))
		h = sh
	}
	return w, h
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// escapeFilterValue escapes s for use as an option value inside a
// filtergraph string: once for the option parser, once for the graph parser.
func escapeFilterValue(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`).Replace(s)
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`).Replace(s)
}

func cropFilter(c *model.Crop) string {
	if c == nil {
		return ""
	}
	var parts []string
	if c.W > 0 {
		parts = append(parts, "w="+strconv.Itoa(c.W))
	}
	if c.H > 0 {
		parts = append(parts, "h="+strconv.Itoa(c.H))
	}
	if c.X != nil {
		parts = append(parts, "x="+strconv.Itoa(*c.X))
	}
	if c.Y != nil {
		parts = append(parts, "y="+strconv.Itoa(*c.Y))
	}
	if len(parts) == 0 {
		return ""
	}
	return "crop=" + strings.Join(parts, ":")
}

func scaleFilter(s model.Scale) string {
	if s.W <= 0 && s.H <= 0 {
		return ""
	}
	w, h := s.W, s.H
	if w <= 0 {
		w = -1
	}
	if h <= 0 {
		h = -1
	}
	return fmt.Sprintf("scale=%d:%d", w, h)
}

func subtitleFilters(o model.EncodeOptions) []string {
	if !o.Subtitles.Burn {
		return nil
	}
	var sub string
	if o.Subtitles.File != "" {
		sub = "subtitles=filename=" + escapeFilterValue(o.Subtitles.File)
	} else {
		sub = fmt.Sprintf("subtitles=filename=%s:si=%d", escapeFilterValue(o.Input), o.Subtitles.Track)
	}
	if o.Start <= 0 {
		return []string{sub}
	}
	// Input seeking rebases timestamps to zero; shift them back so the
	// subtitle renderer picks the cues of the trimmed fragment.
	return []string{
		"setpts=PTS+" + formatSeconds(o.Start) + "/TB",
		sub,
		"setpts=PTS-STARTPTS",
	}
}

// VideoFilters returns the -vf chain: crop, scale, deinterlace, subtitles.
func VideoFilters(o model.EncodeOptions) string {
	var chain []string
	if f := cropFilter(o.Crop); f != "" {
		chain = append(chain, f)
	}
	if f := scaleFilter(o.Scale); f != "" {
		chain = append(chain, f)
	}
	if o.Deinterlace {
		chain = append(chain, "yadif")
	}
	chain = append(chain, subtitleFilters(o)...)
	return strings.Join(chain, ",")
}

// AudioFilters returns the -af chain: amplify, fade in, fade out.
func AudioFilters(o model.EncodeOptions) string {
	if !o.HasAudio() {
		return ""
	}
	var chain []string
	if o.Amplify > 0 {
		chain = append(chain, "volume="+strconv.Itoa(o.Amplify))
	}
	if o.FadeIn > 0 {
		chain = append(chain, "afade=t=in:d="+formatSeconds(o.FadeIn))
	}
	if o.FadeOut > 0 {
		st := math.Max(o.Duration-o.FadeOut, 0)
		chain = append(chain, fmt.Sprintf("afade=t=out:st=%s:d=%s", formatSeconds(st), formatSeconds(o.FadeOut)))
	}
	return strings.Join(chain, ",")
}

func audioArgs(o model.EncodeOptions) []string {
	if !o.HasAudio() {
		return []string{"-an"}
	}
	if o.AudioCodec == model.Vorbis {
		return []string{"-c:a", "libvorbis", "-q:a", strconv.Itoa(o.AudioBitrate)}
	}
	return []string{"-c:a", "libopus", "-b:a", fmt.Sprintf("%dk", o.AudioBitrate)}
}

func rateArgs(o model.EncodeOptions) []string {
	if o.Mode.Kind() == model.ModeCRF {
		return []string{"-crf", strconv.Itoa(o.Mode.Quality()), "-b:v", "0"}
	}
	return []string{"-b:v", fmt.Sprintf("%dk", VideoKbps(o))}
}

func compiledBlock(o model.EncodeOptions, realtime bool) []string {
	args := []string{"-map", fmt.Sprintf("0:v:%d", o.VideoTrack)}
	if o.HasAudio() {
		args = append(args, "-map", fmt.Sprintf("0:a:%d", o.AudioTrack))
	}
	if vf := VideoFilters(o); vf != "" {
		args = append(args, "-vf", vf)
	}
	if af := AudioFilters(o); af != "" {
		args = append(args, "-af", af)
	}
	args = append(args, "-c:v", videoEncoder(o.VideoCodec))
	args = append(args, rateArgs(o)...)
	if o.VideoCodec != model.VP8 {
		args = append(args, "-row-mt", "1")
	}
	if realtime {
		args = append(args, "-deadline", "realtime", "-cpu-used", "8")
	} else {
		args = append(args, "-deadline", "good", "-cpu-used", strconv.Itoa(o.Speed))
	}
	args = append(args, audioArgs(o)...)
	return append(args, "-sn")
}

// CodecArgs returns the editable codec/filter block of a regular encode.
// This is the text a user may hand-edit into an override.
func CodecArgs(o model.EncodeOptions) []string {
	return compiledBlock(o, false)
}

// Block returns the codec/filter block actually used for kind, and whether
// it came from a user override.
func Block(o model.EncodeOptions, kind model.InvocationKind) (tokens []string, overridden bool) {
	if o.Override != nil {
		return append([]string(nil), o.Override...), true
	}
	return compiledBlock(o, kind == model.KindTest), false
}

func header() []string {
	return []string{"-hide_banner", "-nostdin", "-y"}
}

// mainOutput is where the encode (or pass 2) writes. With a preview the
// real output is produced by the concat step instead.
func mainOutput(o model.EncodeOptions, paths model.JobPaths) string {
	if o.Preview != nil {
		return paths.Main
	}
	return o.Output
}

// Compile builds the ffmpeg argument vector for one invocation kind. It is
// pure: identical options, kind and paths always give identical tokens.
func Compile(o model.EncodeOptions, kind model.InvocationKind, paths model.JobPaths) []string {
	switch kind {
	case model.KindPreview:
		return previewArgs(o, paths)
	case model.KindConcat:
		return concatArgs(o, paths)
	}

	args := header()
	if o.Start > 0 {
		args = append(args, "-ss", formatSeconds(o.Start))
	}
	args = append(args, "-i", o.Input)
	if o.Duration > 0 {
		args = append(args, "-t", formatSeconds(o.Duration))
	}
	block, _ := Block(o, kind)
	args = append(args, block...)

	switch kind {
	case model.KindTest:
		args = append(args, "-f", "webm", paths.Test)
	case model.KindPass1:
		args = append(args, "-pass", "1", "-passlogfile", paths.PassLog, "-an", "-f", "null", NullDevice())
	case model.KindPass2:
		args = append(args, "-pass", "2", "-passlogfile", paths.PassLog, "-f", "webm", mainOutput(o, paths))
	default:
		args = append(args, "-f", "webm", mainOutput(o, paths))
	}
	return args
}

func frameDuration(o model.EncodeOptions) string {
	fps := o.FrameRate
	if fps <= 0 {
		fps = 25
	}
	return strconv.FormatFloat(1/fps, 'f', 6, 64)
}

func previewFilters(o model.EncodeOptions) string {
	if o.Preview.Image != "" {
		w, h := OutputSize(o)
		if w <= 0 || h <= 0 {
			return ""
		}
		return fmt.Sprintf("scale=%d:%d", w, h)
	}
	var chain []string
	if f := cropFilter(o.Crop); f != "" {
		chain = append(chain, f)
	}
	if f := scaleFilter(o.Scale); f != "" {
		chain = append(chain, f)
	}
	if o.Deinterlace {
		chain = append(chain, "yadif")
	}
	return strings.Join(chain, ",")
}

func previewArgs(o model.EncodeOptions, paths model.JobPaths) []string {
	if o.Preview == nil {
		return nil
	}
	args := header()
	vmap := "0:v:0"
	if o.Preview.Image != "" {
		args = append(args, "-i", o.Preview.Image)
	} else {
		if o.Preview.Time > 0 {
			args = append(args, "-ss", formatSeconds(o.Preview.Time))
		}
		args = append(args, "-i", o.Input)
		vmap = fmt.Sprintf("0:v:%d", o.VideoTrack)
	}
	if o.HasAudio() {
		args = append(args, "-f", "lavfi", "-t", frameDuration(o), "-i", "anullsrc=r=48000:cl=stereo")
	}
	args = append(args, "-map", vmap)
	if o.HasAudio() {
		args = append(args, "-map", "1:a:0")
	}
	args = append(args, "-frames:v", "1")
	if vf := previewFilters(o); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-c:v", videoEncoder(o.VideoCodec),
		"-crf", strconv.Itoa(MinQuality(o.VideoCodec)), "-b:v", "0",
		"-deadline", "good", "-cpu-used", strconv.Itoa(o.Speed),
	)
	args = append(args, audioArgs(o)...)
	return append(args, "-f", "webm", paths.Preview)
}

func concatArgs(o model.EncodeOptions, paths model.JobPaths) []string {
	args := header()
	args = append(args,
		"-f", "concat", "-safe", "0",
		"-i", paths.ConcatList,
		"-c", "copy",
		"-f", "webm", o.Output,
	)
	return args
}
