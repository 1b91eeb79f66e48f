// Package cli implements the salespulse command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/salespulse/internal/config"
	"github.com/opensource-finance/salespulse/internal/domain"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "salespulse",
		Short: "SalesPulse - sales analytics reports",
		Long: `SalesPulse aggregates order data into report summaries: totals,
top products and customers, and region and category breakdowns.

Run "salespulse serve" for the HTTP API, or use the generate and reports
commands against the same database.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default ./"+config.DefaultFile+" if present)")

	load := func(cmd *cobra.Command) (*domain.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		setupLogger(cmd.ErrOrStderr(), cfg.Logging)
		return cfg, nil
	}

	root.AddCommand(
		newServeCommand(load),
		newGenerateCommand(load),
		newReportsCommand(load),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type loader func(cmd *cobra.Command) (*domain.Config, error)

// setupLogger installs the default slog logger.
func setupLogger(w io.Writer, cfg domain.LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "salespulse %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
