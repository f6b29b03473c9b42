package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumatrade/council/internal/config"
)

type rootFlags struct {
	configPath string
	debug      bool
}

func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "council",
		Short: "Multi-agent trading decision engine",
		Long: `council orchestrates a team of LLM-backed roles (analysts, a bull/bear
debate pair, a trader and a risk manager) into a single trading
recommendation, and retains lessons from realized outcomes.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to yaml config file")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "verbose logging and full trace output")

	cmd.AddCommand(newAnalyzeCmd(flags))
	cmd.AddCommand(newReflectCmd(flags))
	cmd.AddCommand(newMemoriesCmd(flags))
	return cmd
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flags.debug {
		cfg.Debug = true
	}
	return cfg, cfg.Validate()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
