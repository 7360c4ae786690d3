package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"webmcut/internal/cli"
	"webmcut/internal/pipeline"
)

func newArgsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "args <input>",
		Short: "Print the ffmpeg invocations without encoding",
		Long: "Validates the options and prints every ffmpeg invocation the encode would run.\n" +
			"With --block only the editable codec/filter arguments are printed; pass them back\n" +
			"through --raw-args to encode with hand-edited arguments.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.findTools()
			if err != nil {
				return err
			}
			svc, p, err := a.prepare(cmd, args[0], a.serviceOptions(t, cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if block, _ := cmd.Flags().GetBool("block"); block {
				fmt.Fprintln(out, svc.ArgsText())
				return nil
			}

			test, _ := cmd.Flags().GetBool("test")
			m := pipeline.NewManifest(t.ffmpeg, p.Options(), svc.Plan(p.Options(), test), p.Validation.Warnings)
			switch f, _ := cmd.Flags().GetString("format"); f {
			case "shell":
				fmt.Fprint(out, m.Shell())
			case "yaml":
				b, err := m.YAML()
				if err != nil {
					return &ExitError{Code: ExitCLIError, Err: err}
				}
				_, _ = out.Write(b)
			default:
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("invalid --format: %q (valid: shell|yaml)", f)}
			}
			return nil
		},
	}
	fs := cmd.Flags()
	cli.BindEncodeFlags(fs)
	fs.Bool("test", false, "Show the test encode instead of the full one")
	fs.Bool("keep-temp", false, "")
	_ = fs.MarkHidden("keep-temp")
	fs.String("format", "shell", "Output format: shell or yaml")
	fs.Bool("block", false, "Print only the codec/filter arguments")
	return cmd
}
