// Package main is matchctl, the operator CLI for the match engine. It talks to
// the engine's Postgres directly and never starts the scheduler.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"match-engine/internal/app"
	"match-engine/internal/common/config"
	"match-engine/internal/common/logger"
	"match-engine/internal/engine"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "matchctl",
	Short:         "Operate the match engine",
	Long:          "matchctl inspects the recomputation queue, reads stored match scores and enqueues or processes recomputation work.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a config file (defaults to ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for diagnostics written to stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// withEngine connects to the configured backends, runs fn against a wired
// engine and tears everything down again.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	zapLog := logger.NewWithOptions(logger.Options{Level: logLevel, Format: "console", Output: "stderr"})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx := cmd.Context()
	res, err := app.Connect(ctx, cfg, log, 3)
	if err != nil {
		return err
	}
	defer res.Close()

	a, err := app.New(ctx, cfg, res, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a.Engine)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
