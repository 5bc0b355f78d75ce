package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"waterfall-mcp/internal/calllog"
	"waterfall-mcp/internal/config"
	"waterfall-mcp/internal/export"
)

func newExportCmd(flags *globalFlags) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Export the waterfall as pprof, SQLite or a normalized call log",
		Long: `Export the finalized waterfall of a call log.

Formats:
  pprof   gzipped pprof profile, one sample per span with its self time
  sqlite  appends a run to a SQLite database (runs, spans, buckets, stats, events)
  jsonl   the call log re-encoded one call per line

Examples:
  waterfall export calls.jsonl --format pprof --out waterfall.pb.gz
  go tool pprof -top waterfall.pb.gz

  waterfall export calls.jsonl --format sqlite --out runs.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.analyze(cmd, args[0])
			if err != nil {
				return err
			}

			if format == "" {
				format = a.cfg.Export.Format
			}

			switch format {
			case config.FormatSQLite:
				if out == "" {
					out = a.cfg.Export.SQLitePath
				}
				w, err := export.NewSQLiteWriter(cmd.Context(), out)
				if err != nil {
					return err
				}
				defer func() { _ = w.Close() }()

				runID, err := w.Write(cmd.Context(), args[0], a.gui)
				if err != nil {
					return err
				}
				a.logger.Info().Str("run", runID).Str("db", out).Msg("Exported waterfall")
				fmt.Fprintf(cmd.OutOrStdout(), "Exported run %s to %s\n", runID, out)
				return nil

			case config.FormatPprof, config.FormatJSONL:
				if out == "" {
					return fmt.Errorf("--out is required for %s export", format)
				}
				return writeFile(out, func(f *os.File) error {
					if format == config.FormatPprof {
						return export.WritePprof(f, a.gui)
					}
					return calllog.WriteCalls(f, a.log.Calls)
				})

			default:
				return fmt.Errorf("unknown export format %q (want %s, %s or %s)",
					format, config.FormatPprof, config.FormatSQLite, config.FormatJSONL)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Export format: pprof, sqlite or jsonl (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "Output path")
	return cmd
}

func writeFile(path string, write func(*os.File) error) error {
	//nolint:gosec // G304: Output path is chosen by the operator.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
