package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"webmcut/internal/dirs"
	"webmcut/internal/util"
	"webmcut/internal/util/deps"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Diagnose external dependencies (ffmpeg, ffprobe) and paths",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			var missing []error
			check := func(label, tool, custom string) {
				p, err := deps.FindTool(tool, custom)
				if err != nil {
					missing = append(missing, err)
					fmt.Fprintf(out, "%-9s missing\n", label+":")
					return
				}
				fmt.Fprintf(out, "%-9s %s\n", label+":", p)
				if v := toolVersion(cmd.Context(), p); v != "" {
					fmt.Fprintf(out, "%-9s %s\n", "", v)
				}
			}
			check("FFmpeg", "ffmpeg", a.settings.FFmpeg)
			check("FFprobe", "ffprobe", a.settings.FFprobe)
			printPaths(out, a)

			if len(missing) > 0 {
				return &ExitError{Code: ExitMissingDep, Err: errors.Join(missing...)}
			}
			return nil
		},
	}
}

// toolVersion returns the first line of `<tool> -version`, or "" on failure.
func toolVersion(ctx context.Context, path string) string {
	res, err := util.Run(ctx, nil, util.CmdSpec{Path: path, Args: []string{"-version"}})
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(res.Stdout), "\n")
	return strings.TrimSpace(line)
}

func printPaths(w io.Writer, a *app) {
	cfg := a.settings.File
	if cfg == "" {
		if d, err := dirs.ConfigDir(); err == nil {
			cfg = d + " (no config file)"
		}
	}
	temp := a.settings.TempDir
	if temp == "" {
		temp = util.DefaultTempBase()
	}
	fmt.Fprintf(w, "%-9s %s\n", "Config:", cfg)
	fmt.Fprintf(w, "%-9s %s\n", "Temp:", temp)
	if d, err := dirs.CacheDir(); err == nil {
		fmt.Fprintf(w, "%-9s %s (suggested --temp-dir for --keep-temp)\n", "Cache:", d)
	}
}
