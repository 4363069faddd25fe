package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intel.gg/discord-intel/internal/config"
	"intel.gg/discord-intel/internal/core"
	"intel.gg/discord-intel/internal/index"
)

func newSearchCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	var limit int
	var channel, author string

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Semantic search over indexed safe messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			llm, err := core.NewLLMService(cmd.Context(), cfg.GeminiAPIKey, logger)
			if err != nil {
				return err
			}
			defer llm.Close()

			pub, err := index.NewPublisher(cfg.IndexPath, llm, logger)
			if err != nil {
				return err
			}
			defer pub.Close()

			results, err := pub.Search(cmd.Context(), query, limit, index.Filters{
				Channel: channel,
				Author:  author,
			})
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no results")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d results for: %q\n\n", len(results), query)
			for _, r := range results {
				content := r.Content
				if len(content) > 200 {
					content = content[:200] + "..."
				}
				fmt.Fprintf(out, "[#%s] @%s (similarity %.4f)\n  %s\n\n",
					r.Channel, r.Author, r.Similarity, content)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	cmd.Flags().StringVar(&channel, "channel", "", "filter by channel name")
	cmd.Flags().StringVar(&author, "author", "", "filter by author name")
	return cmd
}
