package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rushteam/shoprank/classify"
	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/embed"
	"github.com/rushteam/shoprank/filter"
	"github.com/rushteam/shoprank/rules"
	"github.com/rushteam/shoprank/search"
	"github.com/rushteam/shoprank/store"
	"github.com/rushteam/shoprank/telemetry"
)

func decodeJSON(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

func (c *cli) redis(cmd *cobra.Command) (*store.RedisStore, error) {
	if c.cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is not set")
	}
	return store.NewRedisStore(cmd.Context(), c.cfg.RedisAddr, c.cfg.RedisDB)
}

// loadRules 按 search.LoadRules 的优先级加载规则，配置了 REDIS_ADDR 时连接 Redis。
func (c *cli) loadRules(cmd *cobra.Command) (*rules.Snapshot, error) {
	var rulesStore core.Store
	if c.cfg.RedisAddr != "" {
		rs, err := c.redis(cmd)
		if err != nil {
			return nil, err
		}
		defer rs.Close()
		rulesStore = rs
	}
	return search.LoadRules(cmd.Context(), c.cfg, rulesStore, c.logger)
}

func newRulesCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Merchant rule management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Load and validate a merchant rules file (YAML or JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := rules.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "ok: %d merchants %v\n", snap.Len(), snap.MerchantIDs())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "push [file]",
		Short: "Validate a rules file and publish it to Redis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := rules.LoadFile(args[0])
			if err != nil {
				return err
			}
			rs, err := c.redis(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()
			if err := rules.SaveToStore(cmd.Context(), rs, snap); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "pushed %d merchants %v\n", snap.Len(), snap.MerchantIDs())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [merchant]",
		Short: "Print the effective rules for a merchant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.loadRules(cmd)
			if err != nil {
				return err
			}
			return c.printJSON(snap.Resolve(args[0]))
		},
	})
	return cmd
}

func newFilterCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Extracted filter tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "parse [json]",
		Short: "Validate an extracted filter and print its normalised forms",
		Long:  "Validates the filter JSON (argument or stdin) and prints the structured filter,\nits metadata query and its CEL expression.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			if len(args) == 1 {
				raw = []byte(args[0])
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = b
			}
			f, err := filter.Parse(raw)
			if err != nil {
				return err
			}
			return c.printJSON(map[string]any{
				"filter":         f,
				"metadata_query": filter.MetadataQuery(f),
				"cel":            filter.CEL(f),
			})
		},
	})
	return cmd
}

func newCategoriesCommand(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Category classifier tools",
	}
	embedCmd := &cobra.Command{
		Use:   "embed",
		Short: "Compute category embeddings through the embedding service and write them to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := embed.NewHTTPEmbedder(embed.Config{
				BaseURL: c.cfg.EmbeddingBaseURL,
				APIKey:  c.cfg.EmbeddingAPIKey,
				Model:   c.cfg.EmbeddingModel,
			})
			emb, err := classify.EmbedCategories(cmd.Context(), e, classify.DefaultCategories, 4)
			if err != nil {
				return err
			}
			if err := classify.SaveEmbeddings(out, emb); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "wrote %d category embeddings to %s\n", len(emb), out)
			return nil
		},
	}
	embedCmd.Flags().StringVarP(&out, "out", "o", "category_embeddings.json", "output file")
	cmd.AddCommand(embedCmd)
	return cmd
}

func newTelemetryCommand(c *cli) *cobra.Command {
	var start, stop int64
	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Interaction log tools",
	}
	export := &cobra.Command{
		Use:   "export",
		Short: "Print recorded interaction events as JSON lines (training rows)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := c.redis(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()
			events, err := telemetry.ReadEvents(cmd.Context(), rs, c.cfg.TelemetryListKey, start, stop)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.out)
			enc.SetEscapeHTML(false)
			for _, e := range events {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	export.Flags().Int64Var(&start, "start", 0, "first index")
	export.Flags().Int64Var(&stop, "stop", -1, "last index, -1 for the end")
	cmd.AddCommand(export)
	return cmd
}
