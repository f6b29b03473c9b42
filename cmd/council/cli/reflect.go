package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumatrade/council/internal/graph"
	"github.com/lumatrade/council/internal/models"
)

func newReflectCmd(flags *rootFlags) *cobra.Command {
	var (
		decisionID     string
		realizedReturn float64
	)

	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Record a lesson from a past decision's realized return",
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

			g, err := graph.New(cmd.Context(), cfg, graph.WithLogger(log))
			if err != nil {
				return err
			}
			defer g.Close()

			var rec *models.MemoryRecord
			if decisionID != "" {
				rec, err = g.Reflect(cmd.Context(), decisionID, realizedReturn)
			} else {
				rec, err = g.ReflectAndRemember(cmd.Context(), realizedReturn)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded lesson %s for decision %s (return %.2f):\n%s\n",
				rec.ID, rec.DecisionID, rec.RealizedReturn, rec.Lesson)
			return nil
		},
	}
	cmd.Flags().StringVar(&decisionID, "decision", "", "decision id to attribute the return to (default: most recent)")
	cmd.Flags().Float64Var(&realizedReturn, "return", 0, "realized position return")
	_ = cmd.MarkFlagRequired("return")
	return cmd
}
