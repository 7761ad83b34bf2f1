// Package main implements the agentcore CLI, a perception-action control
// core for intent-driven browser automation.
//
// # File Index
//
//   - main.go       - entry point, rootCmd, global flags, init()
//   - run.go        - runCmd, runOneTask()
//   - watch.go      - watchCmd, bubbletea front end over a live task
//   - runmany.go    - runmanyCmd, concurrent fan-out over an intents file
//   - history.go    - historyCmd
//   - task_why.go   - taskCmd, taskWhyCmd
//   - wiring.go     - shared collaborator construction (browser, inference, config, stores)
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agentcore/internal/corelog"
)

var (
	// Global flags
	verbose    bool
	apiKey     string
	configPath string
	storePath  string
	timeout    time.Duration

	// logger is built once in PersistentPreRunE and shared by every subcommand.
	logger *corelog.ZapLogger
)

var rootCmd = &cobra.Command{
	Use:   "agentcore",
	Short: "agentcore - perception-action control core for browser automation",
	Long: `agentcore drives an intent-driven browser agent through a
perceive / infer / act loop: it observes a page through the accessibility
tree (and a screenshot when the tree is too sparse to act on), asks a model
for the next action, executes it through the Chrome DevTools Protocol, and
repeats until the intent is satisfied, the page fails to make progress, or
a step budget is exhausted.

Logic determines the tier the next decision runs at; the model only
describes what it sees.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		built, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		logger = corelog.Wrap(built)

		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "tunables YAML file (defaults to corectl.DefaultTunables when unset)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "agentcore.db", "path to the task result archive")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "per-task timeout")

	rootCmd.AddCommand(
		runCmd,
		watchCmd,
		runmanyCmd,
		historyCmd,
		taskCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
