package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intel.gg/discord-intel/internal/auth"
	"intel.gg/discord-intel/internal/config"
	"intel.gg/discord-intel/internal/store"
)

func newStatusCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-status record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			counts, err := st.CountByStatus()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			total := 0
			for _, s := range []store.Status{
				store.StatusPending, store.StatusRegexFlag, store.StatusFlagged,
				store.StatusSafe, store.StatusUnverified,
			} {
				fmt.Fprintf(out, "%-14s %d\n", s, counts[s])
				total += counts[s]
			}
			fmt.Fprintf(out, "%-14s %d\n", "total", total)
			return nil
		},
	}
}

func newResetCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Administratively reset records back to pending",
		Long: "Moves every record in the given terminal status back to pending " +
			"and clears its recorded verdict, making it eligible for " +
			"re-evaluation on the next run. This is the only path out of a " +
			"terminal status.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status := store.Status(from)
			if !status.Valid() || status == store.StatusPending {
				return fmt.Errorf("--from must be one of regex_flagged, flagged, safe, unverified")
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.ResetStatus(status)
			if err != nil {
				return err
			}
			logger.Info("records reset",
				zap.String("from", from),
				zap.Int64("count", n))
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d records from %s to pending\n", n, from)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", string(store.StatusUnverified),
		"terminal status to reset (regex_flagged, flagged, safe, unverified)")
	return cmd
}

func newTokenCmd(cfg *config.Config) *cobra.Command {
	var agent string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a read-only agent token for the query API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateAgentToken(cfg.JWTSecret, agent, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "summarizer", "agent name the token is minted for")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
