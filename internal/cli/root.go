package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/exponent-ml/exponent/internal/config"
	"github.com/exponent-ml/exponent/internal/core"
	"github.com/exponent-ml/exponent/internal/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "exponent",
	Short: "Generate, train, and deploy ML projects from a task description",
	Long: `exponent turns a plain-language task description and a dataset into a
working ML project: it analyzes the dataset, generates model/train/predict
code through a code generation API, runs training locally or on a serverless
backend, and deploys the result to GitHub.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.exponent/config.yaml)")
}

// commandContext returns a context cancelled on SIGINT/SIGTERM so blocking
// operations (local training runs, the OAuth callback wait) shut down
// cleanly instead of dying mid-write: a cancelled training run kills the
// child process and records the job as failed before the command returns.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig reads configuration and installs the configured logger as the
// process default.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	envCfg := logger.LoadFromEnv()
	if cfg.Log.Level != "" {
		envCfg.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		envCfg.Format = cfg.Log.Format
	}
	logger.SetDefaultLogger(logger.NewFromEnv(envCfg))

	return cfg, nil
}

// buildOrchestrator assembles the pipeline used by most commands.
func buildOrchestrator(ctx context.Context) (*config.Config, *core.Orchestrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	orch, err := core.Build(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, orch, nil
}
