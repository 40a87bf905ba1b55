package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Expand a query into paraphrases and search the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if k <= 0 {
				k = cfg.Search.DefaultK
			}
			ids, err := a.expander.Search(ctx, strings.Join(args, " "), k)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			papers, err := a.store.GetPapers(ctx, ids)
			if err != nil {
				return fmt.Errorf("load papers: %w", err)
			}
			titles := make(map[string]string, len(papers))
			for _, p := range papers {
				titles[p.ID] = p.Title
			}
			out := cmd.OutOrStdout()
			for _, id := range ids {
				fmt.Fprintf(out, "%s\t%s\n", id, titles[id])
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "neighbours per paraphrase (default: search.default_k)")
	return cmd
}
