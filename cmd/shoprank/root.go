package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rushteam/shoprank/config"
	"github.com/rushteam/shoprank/core"
)

// cli 保存命令间共享的状态。
type cli struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

func newRootCommand() *cobra.Command {
	c := &cli{out: os.Stdout}
	root := &cobra.Command{
		Use:           "shoprank",
		Short:         "Multi-signal product ranking engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = cfg.NewLogger(cmd.ErrOrStderr())
			c.out = cmd.OutOrStdout()
			slog.SetDefault(c.logger)
			return nil
		},
	}

	root.AddCommand(
		newRankCommand(c),
		newSearchCommand(c),
		newRulesCommand(c),
		newFilterCommand(c),
		newCategoriesCommand(c),
		newTelemetryCommand(c),
	)
	return root
}

// contextFlags 个性化上下文参数，多个命令共用。
type contextFlags struct {
	cabin, loyalty, userHash string
	from, to, departure      string
}

func (f *contextFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cabin, "cabin", "", "cabin class, e.g. business")
	cmd.Flags().StringVar(&f.loyalty, "loyalty", "", "loyalty tier, e.g. gold")
	cmd.Flags().StringVar(&f.userHash, "user", "", "hashed user id")
	cmd.Flags().StringVar(&f.from, "from", "", "trip origin, e.g. DXB")
	cmd.Flags().StringVar(&f.to, "to", "", "trip destination, e.g. LHR")
	cmd.Flags().StringVar(&f.departure, "departure", "", "departure time (ISO-8601)")
}

func (f *contextFlags) queryContext() core.QueryContext {
	q := core.QueryContext{Cabin: f.cabin, LoyaltyTier: f.loyalty, UserIDHash: f.userHash}
	if f.from != "" || f.to != "" || f.departure != "" {
		q.Trip = &core.Trip{From: f.from, To: f.to, Departure: f.departure}
	}
	return q
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
