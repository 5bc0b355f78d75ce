// Package cli implements the waterfall command line.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"waterfall-mcp/internal/calllog"
	"waterfall-mcp/internal/config"
	"waterfall-mcp/internal/logging"
	"waterfall-mcp/internal/mcpserver"
	"waterfall-mcp/internal/waterfall"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath   string
	logLevel     string
	filter       string
	bucketFilter string
}

// NewRootCmd builds the waterfall command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "waterfall",
		Short: "Waterfall - span timing analysis for recorded call logs",
		Long: `Reconstruct nested span timings from a recorded call log and report
where the time went.

A call log is a JSON-lines file of start, end and event calls. Keys use
the "/a/b:label" grammar: a leading slash anchors the span at the root
and a ":label" suffix records a named duration on the parent.

Examples:
  # Per-span statistics table
  waterfall summary calls.jsonl

  # Only count slow occurrences
  waterfall summary calls.jsonl --filter 'duration > 5.0'

  # Export for go tool pprof
  waterfall export calls.jsonl --format pprof --out waterfall.pb.gz`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default $WATERFALL_CONFIG or ~/.waterfall/config.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, disabled)")
	pf.StringVar(&flags.filter, "filter", "", "CEL expression selecting span occurrences")
	pf.StringVar(&flags.bucketFilter, "bucket-filter", "", "CEL expression selecting span types")

	rootCmd.AddCommand(newSummaryCmd(flags))
	rootCmd.AddCommand(newGUICmd(flags))
	rootCmd.AddCommand(newSlowestCmd(flags))
	rootCmd.AddCommand(newTreeCmd(flags))
	rootCmd.AddCommand(newExportCmd(flags))
	rootCmd.AddCommand(newServeCmd(flags))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("waterfall version %s\n", mcpserver.Version)
		},
	}
}

// load resolves the configuration with command line overrides applied.
func (f *globalFlags) load(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.filter != "" {
		cfg.Waterfall.Filter = f.filter
	}
	if f.bucketFilter != "" {
		cfg.Waterfall.BucketFilter = f.bucketFilter
	}
	cfg.Log.Output = cmd.ErrOrStderr()
	return cfg, logging.NewWithComponent(cfg.Log, "cli"), nil
}

// analysis is a call log with its finalized waterfall.
type analysis struct {
	cfg    *config.Config
	logger zerolog.Logger
	log    *calllog.CallLog
	gui    *waterfall.GUI
}

func (f *globalFlags) analyze(cmd *cobra.Command, path string) (*analysis, error) {
	cfg, logger, err := f.load(cmd)
	if err != nil {
		return nil, err
	}

	cl, err := calllog.ReadCallLog(path)
	if err != nil {
		return nil, err
	}

	w, err := cl.Waterfall(cfg.Waterfall, waterfall.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to configure waterfall: %w", err)
	}

	return &analysis{cfg: cfg, logger: logger, log: cl, gui: w.GUI()}, nil
}
