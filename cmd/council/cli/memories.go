package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumatrade/council/internal/memory"
)

func newMemoriesCmd(flags *rootFlags) *cobra.Command {
	var (
		symbol string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "memories",
		Short: "List recorded lessons for a symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			symbol = strings.ToUpper(strings.TrimSpace(symbol))

			store, err := memory.Open(cfg.MemoryDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.LessonsFor(cmd.Context(), symbol, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(out, "No lessons recorded for %s\n", symbol)
				return nil
			}
			for _, rec := range records {
				fmt.Fprintf(out, "%s  %s @ %s  return %.2f\n  %s\n\n",
					rec.ID, rec.Symbol, rec.TradeDate, rec.RealizedReturn, rec.Lesson)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "instrument symbol, e.g. AAPL")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of lessons to show")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}
