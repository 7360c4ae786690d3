package model

// VideoStream describes one probed video stream. Index is relative to the
// other video streams, matching ffmpeg's 0:v:N specifier.
type VideoStream struct {
	Index     int
	Codec     string
	Width     int
	Height    int
	FrameRate float64
}

// AudioStream describes one probed audio stream.
type AudioStream struct {
	Index      int
	Codec      string
	Channels   int
	SampleRate int
}

// SubtitleStream describes one probed subtitle stream.
type SubtitleStream struct {
	Index    int
	Codec    string
	Language string
}

// Source is the read-only media metadata returned by the probe.
type Source struct {
	Path      string
	Duration  float64
	Video     []VideoStream
	Audio     []AudioStream
	Subtitles []SubtitleStream
}

// InvocationKind identifies what an ffmpeg run produces.
type InvocationKind string

const (
	KindTest    InvocationKind = "test"
	KindEncode  InvocationKind = "encode"
	KindPass1   InvocationKind = "pass1"
	KindPass2   InvocationKind = "pass2"
	KindPreview InvocationKind = "preview"
	KindConcat  InvocationKind = "concat"
)

// Invocation is one ffmpeg run of a job.
type Invocation struct {
	Kind    InvocationKind `yaml:"kind"`
	Args    []string       `yaml:"args"`
	Output  string         `yaml:"output"`
	Pass    int            `yaml:"pass,omitempty"`
	PassLog string         `yaml:"passlog,omitempty"`
	Weight  float64        `yaml:"weight"`
}

// JobPaths are the per-job temp paths, allocated once per job.
type JobPaths struct {
	Workdir    string `yaml:"workdir"`
	Test       string `yaml:"test"`
	PassLog    string `yaml:"passlog"`
	Preview    string `yaml:"preview"`
	ConcatList string `yaml:"concat_list"`
	Main       string `yaml:"main"`
}
