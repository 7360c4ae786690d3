package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"webmcut/internal/model"
	"webmcut/internal/pipeline"
	"webmcut/internal/util/deps"
	"webmcut/internal/util/format"
)

func newProbeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "probe <input>",
		Short:         "Show the streams and duration of an input",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ffprobe, err := deps.FindFFprobe(a.settings.FFprobe)
			if err != nil {
				return &ExitError{Code: ExitMissingDep, Err: err}
			}
			svc := pipeline.NewService(pipeline.WithFFprobePath(ffprobe), pipeline.WithLogger(a.log))
			src, err := svc.Probe(cmd.Context(), args[0])
			if err != nil {
				return &ExitError{Code: ExitInvalidInput, Err: err}
			}
			switch f, _ := cmd.Flags().GetString("format"); f {
			case "text":
				printSource(cmd.OutOrStdout(), src)
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(src); err != nil {
					return &ExitError{Code: ExitCLIError, Err: err}
				}
				return enc.Close()
			default:
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("invalid --format: %q (valid: text|yaml)", f)}
			}
			return nil
		},
	}
	cmd.Flags().String("format", "text", "Output format: text or yaml")
	return cmd
}

func printSource(w io.Writer, src model.Source) {
	fmt.Fprintf(w, "Input:    %s\n", src.Path)
	fmt.Fprintf(w, "Duration: %s\n", format.Timestamp(src.Duration))
	for _, v := range src.Video {
		fmt.Fprintf(w, "Video #%d:    %s %dx%d @ %.4g fps\n", v.Index, v.Codec, v.Width, v.Height, v.FrameRate)
	}
	for _, s := range src.Audio {
		fmt.Fprintf(w, "Audio #%d:    %s %dch %d Hz\n", s.Index, s.Codec, s.Channels, s.SampleRate)
	}
	for _, s := range src.Subtitles {
		lang := s.Language
		if lang == "" {
			lang = "und"
		}
		fmt.Fprintf(w, "Subtitle #%d: %s (%s)\n", s.Index, s.Codec, lang)
	}
}
