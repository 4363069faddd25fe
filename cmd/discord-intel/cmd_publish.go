package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intel.gg/discord-intel/internal/config"
	"intel.gg/discord-intel/internal/core"
	"intel.gg/discord-intel/internal/index"
)

func newPublishCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	var minContentLen int

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Rebuild the vector index from verified-safe messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

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

			n, err := pub.Publish(cmd.Context(), st, minContentLen)
			if err != nil {
				return fmt.Errorf("publish aborted, previous index left intact: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d safe messages -> %s\n", n, cfg.IndexPath)
			return nil
		},
	}

	cmd.Flags().IntVar(&minContentLen, "min-content-len", cfg.MinContentLen,
		"minimum content length for a safe message to be indexed")
	return cmd
}
