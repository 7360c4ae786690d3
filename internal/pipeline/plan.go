package pipeline

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"webmcut/internal/encoder"
	"webmcut/internal/model"
	"webmcut/internal/util"
)

// Manifest is the printable form of a compiled plan (args command).
type Manifest struct {
	FFmpeg      string `yaml:"ffmpeg"`
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	Mode        string `yaml:"mode"`
	VideoKbps   int    `yaml:"video_kbps,omitempty"`
	TwoPass     bool   `yaml:"two_pass"`
	Test        bool   `yaml:"test"`
	Override    bool   `yaml:"override"`
	TotalFrames int    `yaml:"total_frames"`

	Invocations []Step   `yaml:"invocations"`
	Warnings    []string `yaml:"warnings,omitempty"`
}

// Step is one ffmpeg run in a Manifest.
type Step struct {
	Kind    model.InvocationKind `yaml:"kind"`
	Pass    int                  `yaml:"pass,omitempty"`
	Weight  float64              `yaml:"weight"`
	Output  string               `yaml:"output"`
	Command string               `yaml:"command"`
	Args    []string             `yaml:"args"`
}

// NewManifest describes pl as compiled from o.
func NewManifest(ffmpegPath string, o model.EncodeOptions, pl encoder.Plan, warnings []string) Manifest {
	m := Manifest{
		FFmpeg:      ffmpegPath,
		Input:       o.Input,
		Output:      pl.Output,
		Mode:        o.Mode.String(),
		VideoKbps:   encoder.VideoKbps(o),
		TwoPass:     o.UsesTwoPass(),
		Test:        pl.Test,
		Override:    o.Override != nil,
		TotalFrames: pl.TotalFrames,
		Warnings:    warnings,
	}
	for _, inv := range pl.Invocations {
		m.Invocations = append(m.Invocations, Step{
			Kind:    inv.Kind,
			Pass:    inv.Pass,
			Weight:  inv.Weight,
			Output:  inv.Output,
			Command: util.ShellQuote(ffmpegPath, inv.Args),
			Args:    inv.Args,
		})
	}
	return m
}

// YAML renders the manifest as a YAML document.
func (m Manifest) YAML() ([]byte, error) {
	return yaml.Marshal(m)
}

// Shell renders one commented command line per invocation, suitable for
// pasting into a POSIX shell.
func (m Manifest) Shell() string {
	var b strings.Builder
	for _, w := range m.Warnings {
		fmt.Fprintf(&b, "# warning: %s\n", w)
	}
	for _, s := range m.Invocations {
		fmt.Fprintf(&b, "# %s (%.0f%%)\n%s\n", s.Kind, s.Weight*100, s.Command)
	}
	return b.String()
}
