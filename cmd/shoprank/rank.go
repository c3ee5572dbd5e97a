package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/search"
)

func newRankCommand(c *cli) *cobra.Command {
	var (
		merchant   string
		candidates string
		noRerank   bool
		ctxFlags   contextFlags
	)
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Blend and rank a JSON file of retrieved candidates",
		Long: "Reads [{\"id\", \"similarity\", \"metadata\"}] from --candidates (or stdin with \"-\"),\n" +
			"blends them under the merchant's rules and prints the ranked list.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cands []core.Candidate
			if candidates == "-" {
				if err := decodeJSON(cmd.InOrStdin(), &cands); err != nil {
					return err
				}
			} else if err := readJSONFile(candidates, &cands); err != nil {
				return err
			}

			snap, err := c.loadRules(cmd)
			if err != nil {
				return err
			}

			q := ctxFlags.queryContext()
			engine, reranker := search.NewRanking(c.cfg, snap, c.logger, nil)
			results := engine.Rank(cmd.Context(), cands, merchant, q)
			if !noRerank {
				results = reranker.Rerank(cmd.Context(), results, q)
			}
			return c.printJSON(results)
		},
	}
	cmd.Flags().StringVarP(&merchant, "merchant", "m", "", "merchant id")
	cmd.Flags().StringVarP(&candidates, "candidates", "c", "-", "candidate JSON file, - for stdin")
	cmd.Flags().BoolVar(&noRerank, "no-rerank", false, "skip the learned reranker")
	ctxFlags.register(cmd)
	_ = cmd.MarkFlagRequired("merchant")
	return cmd
}

func newSearchCommand(c *cli) *cobra.Command {
	var (
		req       search.Request
		rawFilter string
		ctxFlags  contextFlags
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a full search against the configured index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, deps, err := search.Build(cmd.Context(), c.cfg, nil, c.logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			req.Query = args[0]
			req.Context = ctxFlags.queryContext()
			if rawFilter != "" {
				req.RawFilter = []byte(rawFilter)
			}
			resp, err := svc.Search(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			return c.printJSON(resp)
		},
	}
	cmd.Flags().StringVarP(&req.MerchantID, "merchant", "m", "", "merchant id")
	cmd.Flags().IntVar(&req.Offset, "offset", 0, "result offset")
	cmd.Flags().IntVar(&req.Limit, "limit", 10, "page size")
	cmd.Flags().StringVarP(&rawFilter, "filter", "f", "", "extracted filter JSON")
	ctxFlags.register(cmd)
	_ = cmd.MarkFlagRequired("merchant")
	return cmd
}
