package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intel.gg/discord-intel/internal/config"
	"intel.gg/discord-intel/internal/ingest"
)

func newIngestCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <json-dir>",
		Short: "Load Discord export JSON files into the record store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := ingest.NewIngester(st, logger).LoadDir(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"ingested %d files: %d inserted, %d duplicates, %d skipped\n",
				report.Files, report.Inserted, report.Duplicates, report.Skipped)
			return nil
		},
	}
}
