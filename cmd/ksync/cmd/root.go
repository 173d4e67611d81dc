// Package cmd provides the CLI commands for ksync.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ksync/internal/app"
	"github.com/markdave123-py/ksync/internal/config"
	"github.com/markdave123-py/ksync/internal/logging"
)

// errReported marks failures whose details were already printed.
var errReported = errors.New("reported failure")

type globalOptions struct {
	logLevel  string
	logFormat string
}

// NewRootCmd creates the root command for the ksync CLI.
func NewRootCmd() *cobra.Command {
	var g globalOptions

	cmd := &cobra.Command{
		Use:   "ksync",
		Short: "Knowledge base ingestion, verification and retrieval",
		Long: `ksync ingests repository documentation, code and configuration into a
Postgres/pgvector knowledge base, verifies its embedding coverage and
measures retrieval quality.

Configuration comes from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: text, json (overrides LOG_FORMAT)")

	cmd.AddCommand(
		newIngestCmd(&g),
		newVerifyCmd(&g),
		newSearchCmd(&g),
		newProbeCmd(&g),
		newServeCmd(&g),
	)
	return cmd
}

// Execute runs the root command with SIGINT/SIGTERM cancelling its context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// setup loads configuration and installs the process logger.
func setup(g *globalOptions) (*config.Config, *slog.Logger) {
	cfg := config.LoadConfig()
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		cfg.LogFormat = g.logFormat
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger
}

func openApp(ctx context.Context, g *globalOptions, opts app.Options) (*app.App, *slog.Logger, error) {
	cfg, logger := setup(g)
	a, err := app.NewApp(ctx, cfg, logger, opts)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func closeApp(a *app.App, logger *slog.Logger) {
	if err := a.Close(); err != nil {
		logger.Warn("close", "err", err)
	}
}
