package cmd

import (
	"github.com/spf13/cobra"
)

func newTuiCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tui <input>",
		Short:         "Encode with the progress view even when stdout is not a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEncode(cmd, args[0], runMode{ForceTUI: true})
		},
	}
	bindRunFlags(cmd)
	// In TUI mode, '--no-ui' makes no sense.
	if f := cmd.Flags().Lookup("no-ui"); f != nil {
		f.Hidden = true
	}
	return cmd
}
