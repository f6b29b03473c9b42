package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumatrade/council/internal/graph"
)

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	var (
		symbol string
		date   string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full decision pipeline for a symbol and date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.Debug)
			if err != nil {
				return err
			}
			defer log.Sync()

			if date == "" {
				date = time.Now().Format("2006-01-02")
			}

			g, err := graph.New(cmd.Context(), cfg, graph.WithLogger(log))
			if err != nil {
				return err
			}
			defer g.Close()

			trace, final, err := g.Propagate(cmd.Context(), symbol, date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Decision %s: %s %s (confidence %.2f)\n",
				final.Decision.ID, final.Decision.Action, final.Decision.Symbol, final.Decision.Confidence)
			if final.Overridden {
				fmt.Fprintf(out, "Overridden from %s: %s\n", final.OriginalAction, final.OverrideReason)
			}
			if final.Decision.Degraded {
				fmt.Fprintf(out, "Degraded run; reasons:\n")
				for _, r := range final.Decision.DegradedReasons {
					fmt.Fprintf(out, "  - %s\n", r)
				}
			}
			fmt.Fprintf(out, "\n%s\n", final.Decision.Rationale)

			if cfg.Debug {
				traceJSON, err := json.MarshalIndent(trace, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n--- trace ---\n%s\n", traceJSON)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "instrument symbol, e.g. AAPL")
	cmd.Flags().StringVar(&date, "date", "", "as-of date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}
