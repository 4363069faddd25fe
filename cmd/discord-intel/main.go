package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"intel.gg/discord-intel/internal/config"
	"intel.gg/discord-intel/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(cfg, logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(level string) *zap.Logger {
	if level == "DEBUG" {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig = encCfg
	logger, _ := zcfg.Build()
	return logger
}

func newRootCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "discord-intel",
		Short: "Safety pipeline for Discord chat exports",
		Long: "discord-intel ingests Discord chat exports, screens messages for " +
			"prompt-injection attacks, and indexes only verified-safe content " +
			"for retrieval by a summarization agent.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newIngestCmd(cfg, logger),
		newEvaluateCmd(cfg, logger),
		newPublishCmd(cfg, logger),
		newSearchCmd(cfg, logger),
		newServeCmd(cfg, logger),
		newStatusCmd(cfg, logger),
		newResetCmd(cfg, logger),
		newTokenCmd(cfg),
	)
	return root
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store at %s: %w", cfg.DatabasePath, err)
	}
	return st, nil
}
