package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	webmcutcmd "webmcut/internal/cli/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := webmcutcmd.Execute(ctx)
	stop()
	if err == nil {
		os.Exit(webmcutcmd.ExitOK)
	}
	var ee *webmcutcmd.ExitError
	if errors.As(err, &ee) {
		if ee.Err != nil {
			fmt.Fprintln(os.Stderr, "webmcut:", ee.Err)
		}
		os.Exit(ee.Code)
	}
	fmt.Fprintln(os.Stderr, "webmcut:", err)
	os.Exit(webmcutcmd.ExitCLIError)
}
