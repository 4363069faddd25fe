package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intel.gg/discord-intel/internal/config"
	"intel.gg/discord-intel/internal/core"
	"intel.gg/discord-intel/internal/screen"
)

func newEvaluateCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	var threshold float64
	var concurrency int

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the safety pipeline over all pending messages",
		Long: "Screens pending messages against the regex rule set, then scores " +
			"the remainder with the LLM oracle. Records that already left " +
			"pending are never touched; re-running is a no-op.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rules, err := screen.LoadRuleSet(cfg.RulesPath)
			if err != nil {
				return err
			}
			logger.Info("rule set loaded",
				zap.Int("version", rules.Version),
				zap.Int("rules", len(rules.Rules)))

			llm, err := core.NewLLMService(cmd.Context(), cfg.GeminiAPIKey, logger)
			if err != nil {
				return err
			}
			defer llm.Close()
			if cfg.ScoringInstruction != "" {
				llm.SetScoringInstruction(cfg.ScoringInstruction)
			}

			eval := core.NewEvalService(llm, threshold,
				time.Duration(cfg.EvalTimeoutSec)*time.Second, logger)
			pipeline := core.NewPipelineService(st, screen.NewScreener(rules), eval, concurrency, logger)

			report, err := pipeline.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: %d screened, %d regex_flagged, %d safe, %d flagged, %d unverified\n",
				report.RunID, report.Screened, report.RegexFlagged,
				report.Safe, report.Flagged, report.Unverified)
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", cfg.SafetyThreshold,
		"oracle score at or above which a message is flagged")
	cmd.Flags().IntVar(&concurrency, "concurrency", cfg.EvalConcurrency,
		"maximum simultaneous oracle calls")
	return cmd
}
