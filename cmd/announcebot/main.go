package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"announcebot/internal/app"
)

var version = "dev"

func main() {
	if err := run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var opts app.Options

	cmd := &cli.Command{
		Name:    "announcebot",
		Usage:   "Broadcast announcements to every member of a Discord server by direct message",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to the config file (.json, .yaml or .yml)",
				Value:       "./config.json",
				Sources:     cli.EnvVars("ANNOUNCEBOT_CONFIG"),
				Destination: &opts.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "env-file",
				Usage:       "optional .env file with ANNOUNCEBOT_TOKEN / ANNOUNCEBOT_AUTHORIZED_USER_ID",
				Value:       ".env",
				Destination: &opts.EnvFile,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level override (trace, debug, info, warn, error)",
				Sources:     cli.EnvVars("ANNOUNCEBOT_LOG_LEVEL"),
				Destination: &opts.LogLevel,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			return serve(ctx, opts)
		},
	}
	return cmd.Run(ctx, args)
}

func serve(ctx context.Context, opts app.Options) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(opts)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)

	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}
