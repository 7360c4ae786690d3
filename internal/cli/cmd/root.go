package cmd

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"webmcut/internal/config"
	"webmcut/internal/logging"
)

const (
	ExitOK           = 0
	ExitCLIError     = 1
	ExitMissingDep   = 2
	ExitInvalidInput = 3
	ExitEncodeError  = 4
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// app is the state shared by all commands of one invocation.
type app struct {
	v        *viper.Viper
	settings config.Settings
	log      *logrus.Logger
	stderr   io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "webmcut <input>",
		Short: "Cut a fragment of a video into a WebM",
		Long: "webmcut cuts a time range out of a video file and encodes it to WebM (VP9/VP8 with Opus/Vorbis).\n" +
			"It can fit the result into a size limit with a two-pass encode, burn in subtitles, and prepend a preview frame.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Init(a.v, cmd.Root()); err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			a.settings = config.Load(a.v)
			a.stderr = cmd.ErrOrStderr()
			a.log = logging.New(a.stderr, a.settings.Verbose)
			if a.settings.File != "" {
				a.log.WithField("file", a.settings.File).Debug("loaded config")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEncode(cmd, args[0], runMode{})
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("out-dir", "o", "", "Output directory (default: next to the input)")
	pf.String("temp-dir", "", "Parent of job working directories (default: system temp)")
	pf.BoolP("verbose", "v", false, "Log debug output and mirror ffmpeg output")
	pf.String("ffmpeg", "", "Path to ffmpeg")
	pf.String("ffprobe", "", "Path to ffprobe")

	// `webmcut <input>` encodes directly.
	bindRunFlags(root)

	root.AddCommand(newEncodeCmd(a))
	root.AddCommand(newArgsCmd(a))
	root.AddCommand(newProbeCmd(a))
	root.AddCommand(newTuiCmd(a))
	root.AddCommand(newDoctorCmd(a))
	root.AddCommand(newCompletionCmd())

	return root
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
