package model

// VideoCodec selects the libvpx flavour used for the video stream.
type VideoCodec string

const (
	VP9 VideoCodec = "vp9"
	VP8 VideoCodec = "vp8"
)

// AudioCodec selects the audio encoder.
type AudioCodec string

const (
	Opus   AudioCodec = "opus"
	Vorbis AudioCodec = "vorbis"
)

// NoAudio as AudioTrack drops the audio stream entirely.
const NoAudio = -1

// Crop is a crop rectangle in source pixels. Zero W/H and nil X/Y leave
// that part to ffmpeg's defaults (full size, centered).
type Crop struct {
	W int
	H int
	X *int
	Y *int
}

// Scale is the target size. A zero side keeps the aspect ratio.
type Scale struct {
	W int
	H int
}

// Subtitles configures burn-in. File takes precedence over Track.
type Subtitles struct {
	Burn  bool
	Track int
	File  string
}

// Preview is a still frame (or external image) composited in front of
// the encoded fragment.
type Preview struct {
	Time  float64
	Image string
}

// EncodeOptions is a fully validated option set. It is never mutated after
// validation; every edit produces a new value.
type EncodeOptions struct {
	Input  string
	Output string

	VideoTrack   int
	Crop         *Crop
	Scale        Scale
	Deinterlace  bool
	Subtitles    Subtitles
	SourceWidth  int
	SourceHeight int
	FrameRate    float64

	AudioTrack int
	FadeIn     float64
	FadeOut    float64
	Amplify    int

	Start    float64
	Duration float64

	VideoCodec   VideoCodec
	AudioCodec   AudioCodec
	Mode         Mode
	AudioBitrate int // kbps for opus, quality level for vorbis
	TwoPass      bool
	Speed        int

	Preview *Preview

	// Override replaces the compiled codec/filter block when non-nil.
	Override []string
}

// HasAudio reports whether an audio stream is mapped into the output.
func (o EncodeOptions) HasAudio() bool {
	return o.AudioTrack != NoAudio
}

// UsesTwoPass reports whether the encode actually runs two passes.
func (o EncodeOptions) UsesTwoPass() bool {
	return o.TwoPass && o.Mode.Kind() != ModeCRF
}
