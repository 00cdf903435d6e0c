// Package main runs the quiz buzzer session coordinator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quizbuzzer/internal/config"
	"quizbuzzer/internal/observability"
	"quizbuzzer/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cobra.CheckErr(newCmd().ExecuteContext(ctx))
}

func newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quizbuzzer",
		Short:         "Real-time session coordinator for multiplayer buzzer quizzes.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       server.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.NewViper(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("starting quiz buzzer",
				zap.String("addr", cfg.Addr()),
				zap.String("client_url", cfg.ClientURL),
				zap.Duration("sweep_interval", cfg.SweepInterval))

			return server.Run(cmd.Context(), cfg, logger)
		},
	}

	config.RegisterFlags(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quizbuzzer v{{.Version}}\n")

	return cmd
}
