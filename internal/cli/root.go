// Package cli implements the pavcore command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/pavcore/internal/config"
)

var (
	cfg    config.Config
	logger *slog.Logger

	cfgFile     string
	resultsDir  string
	jsonOutput  bool
	logLevel    string
	reportPath  string
	watchMode   bool
	errorOutput io.Writer = os.Stderr
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pavcore",
		Short: "Check PAV proportionality proof artifacts",
		Long: `pavcore checks the artifacts produced by the search for a PAV
proportionality counterexample: that the explored history tree is complete
up to symmetry, and that every Farkas infeasibility certificate is sound.

Artifacts live under <results-dir>/<num_alts>/info-<num_alts>-<k>.yaml
(or .db for SQLite).

Examples:
  pavcore check-complete 12 9           # One configuration
  pavcore check-complete 12             # k = 8 .. 10
  pavcore verify-certificates 12 --workers auto
  pavcore stats 12 9 --json
  pavcore convert results/12/info-12-9.yaml /tmp/info-12-9.db`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/pavcore/config.toml)")
	root.PersistentFlags().StringVar(&resultsDir, "results-dir", "", "directory holding result artifacts")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&reportPath, "report", "", "write a JSON run report to this file")
	root.PersistentFlags().BoolVar(&watchMode, "watch", false, "re-run configurations whose artifacts change")

	root.AddCommand(
		newCheckCmd(),
		newVerifyCmd(),
		newStatsCmd(),
		newConvertCmd(),
	)
	return root
}

// Execute runs the CLI until completion or an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(errorOutput, errorStyle().Render("Error: ")+err.Error())
	}
	return err
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool {
	return jsonOutput
}

// setup loads the configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if resultsDir != "" {
		loaded.ResultsDir = resultsDir
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}
