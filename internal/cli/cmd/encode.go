package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"webmcut/internal/cli"
	"webmcut/internal/logging"
	"webmcut/internal/pipeline"
	"webmcut/internal/progress"
	"webmcut/internal/ui"
	"webmcut/internal/util"
	"webmcut/internal/util/deps"
	"webmcut/internal/util/format"
	"webmcut/internal/validate"
)

type runMode struct {
	ForceTUI bool
}

func newEncodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "encode <input>",
		Short:         "Validate the options and encode the fragment",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEncode(cmd, args[0], runMode{})
		},
	}
	bindRunFlags(cmd)
	return cmd
}

func bindRunFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	cli.BindEncodeFlags(fs)
	fs.Bool("test", false, "Run a fast low-quality test encode into the working directory")
	fs.Bool("keep-temp", false, "Keep the job working directory")
	fs.Bool("no-ui", false, "Disable TUI; use plain textual output")
}

type tools struct {
	ffmpeg  string
	ffprobe string
}

func (a *app) findTools() (tools, error) {
	ffmpeg, err := deps.FindFFmpeg(a.settings.FFmpeg)
	if err != nil {
		return tools{}, &ExitError{Code: ExitMissingDep, Err: err}
	}
	ffprobe, err := deps.FindFFprobe(a.settings.FFprobe)
	if err != nil {
		return tools{}, &ExitError{Code: ExitMissingDep, Err: err}
	}
	return tools{ffmpeg: ffmpeg, ffprobe: ffprobe}, nil
}

func (a *app) serviceOptions(t tools, cmd *cobra.Command) []pipeline.Option {
	keep, _ := cmd.Flags().GetBool("keep-temp")
	return []pipeline.Option{
		pipeline.WithFFmpegPath(t.ffmpeg),
		pipeline.WithFFprobePath(t.ffprobe),
		pipeline.WithLogger(a.log),
		pipeline.WithTempBase(a.settings.TempDir),
		pipeline.WithKeepTemp(keep),
		pipeline.WithVerbose(a.settings.Verbose),
	}
}

// prepare reads the flags, probes input and validates. Field errors are
// printed and turned into ExitInvalidInput.
func (a *app) prepare(cmd *cobra.Command, input string, opts []pipeline.Option) (*pipeline.Service, pipeline.Prepared, error) {
	raw, err := cli.RawOptions(cmd.Flags(), input, a.settings)
	if err != nil {
		return nil, pipeline.Prepared{}, &ExitError{Code: ExitCLIError, Err: err}
	}
	svc := pipeline.NewService(opts...)
	p, err := svc.Prepare(cmd.Context(), raw)
	if errors.Is(err, pipeline.ErrInvalidOptions) {
		for _, fe := range p.Validation.Errors {
			fmt.Fprintf(a.stderr, "error: --%s: %s\n", flagName(fe.Field), fe.Msg)
		}
		return nil, p, &ExitError{Code: ExitInvalidInput, Err: fmt.Errorf("%d invalid option(s)", len(p.Validation.Errors))}
	}
	if err != nil {
		return nil, p, &ExitError{Code: ExitInvalidInput, Err: err}
	}
	return svc, p, nil
}

func (a *app) runEncode(cmd *cobra.Command, input string, mode runMode) error {
	t, err := a.findTools()
	if err != nil {
		return err
	}
	opts := a.serviceOptions(t, cmd)
	svc, p, err := a.prepare(cmd, input, opts)
	if err != nil {
		return err
	}
	opts = append(opts, pipeline.WithJobID(svc.JobID()))

	test, _ := cmd.Flags().GetBool("test")
	noUI, _ := cmd.Flags().GetBool("no-ui")
	useTUI := mode.ForceTUI || (!noUI && !a.settings.NoUI && !a.settings.Verbose && isTerminal())

	var out pipeline.Outcome
	if useTUI {
		out, err = ui.Run(cmd.Context(), func(r progress.Reporter) *pipeline.Service {
			return pipeline.NewService(append(opts,
				pipeline.WithReporter(r),
				pipeline.WithLogger(logging.Discard()),
				pipeline.WithUsageSampler(util.NewUsageSampler(time.Second)),
			)...)
		}, p.Options(), test, p.Validation.Warnings)
	} else {
		printWarnings(a.stderr, p.Validation.Warnings)
		enc := pipeline.NewService(append(opts, pipeline.WithReporter(newTextReporter(a.stderr)))...)
		out, err = enc.Encode(cmd.Context(), p.Options(), test)
	}
	if err != nil {
		return &ExitError{Code: ExitEncodeError, Err: err}
	}
	printOutcome(cmd.OutOrStdout(), a.stderr, out)
	return nil
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}

func printOutcome(stdout, stderr io.Writer, out pipeline.Outcome) {
	if out.Test {
		fmt.Fprintf(stdout, "Test encode: %s (%s)\n", out.Output, format.HumanizeBytes(out.Bytes))
	} else {
		fmt.Fprintf(stdout, "Saved: %s (%s)\n", out.Output, format.HumanizeBytes(out.Bytes))
	}
	if out.TempDir != "" {
		fmt.Fprintf(stdout, "Working directory kept: %s\n", out.TempDir)
	}
	if out.NextOutput != "" {
		fmt.Fprintf(stdout, "Next output: %s\n", out.NextOutput)
	}
	if out.Overshot {
		fmt.Fprintf(stderr, "warning: output is %.0f%% of the size limit. Consider two-pass or a lower bitrate.\n", out.OvershootRatio*100)
	}
}

// flagName maps a validation field to the flag that sets it.
func flagName(field string) string {
	switch field {
	case validate.FieldTemp:
		return "temp-dir"
	case validate.FieldSubtitles:
		return "subtitle-track/--subtitle-file"
	case validate.FieldPreview:
		return "preview-at/--preview-image"
	}
	return strings.ReplaceAll(field, "_", "-")
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
