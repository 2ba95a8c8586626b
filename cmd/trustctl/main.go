package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/trustkit/internal/cli"
	"github.com/aussiebroadwan/trustkit/pkg/apierr"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := cli.LoadConfig()

	app, err := cli.New(ctx, cfg, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize trustctl: %v\n", err)
		return 1
	}
	defer app.Close()

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}

		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			fmt.Fprintf(os.Stderr, "%s error %s: %s\n", apiErr.Category, apiErr.Code, apiErr.Message)
			return 1
		}

		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
