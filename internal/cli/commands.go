package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"waterfall-mcp/internal/analyzer"
	"waterfall-mcp/internal/mcpserver"
)

func newSummaryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary FILE",
		Short: "Print the per-span statistics table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.analyze(cmd, args[0])
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), a.gui.Summary)
			if n := len(a.gui.Errors); n > 0 {
				cmd.PrintErrf("%d non-fatal errors while building the waterfall (see log)\n", n)
			}
			return nil
		},
	}
}

func newGUICmd(flags *globalFlags) *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "gui FILE",
		Short: "Print the finalized waterfall as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.analyze(cmd, args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(a.gui); err != nil {
				return fmt.Errorf("failed to encode waterfall: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&compact, "compact", false, "Emit single-line JSON")
	return cmd
}

func newSlowestCmd(flags *globalFlags) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "slowest FILE",
		Short: "List the longest span occurrences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.analyze(cmd, args[0])
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("top") {
				top = a.cfg.Report.TopN
			}

			slowest := analyzer.FindSlowestSpans(a.gui.Stats, top)
			if len(slowest) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No spans found.")
				return nil
			}
			for i, sp := range slowest {
				fmt.Fprintln(cmd.OutOrStdout(), analyzer.FormatSlowSpan(sp, i+1, a.gui.Units))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 10, "Number of spans to list (0 lists all)")
	return cmd
}

func newTreeCmd(flags *globalFlags) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "tree FILE",
		Short: "Print the waterfall as an indented span tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.analyze(cmd, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), analyzer.FormatSpanTree(a.gui.Rows, a.gui.Units, depth))
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "Maximum nesting depth (0 renders everything)")
	return cmd
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load(cmd)
			if err != nil {
				return err
			}
			return mcpserver.New(cfg, logger).ServeStdio()
		},
	}
}
