package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"intel.gg/discord-intel/internal/screen"
	"intel.gg/discord-intel/internal/store"
)

// RunReport summarizes one coordinator run.
type RunReport struct {
	RunID        string
	Screened     int
	RegexFlagged int64
	Safe         int64
	Flagged      int64
	Unverified   int64
}

// PipelineService drives pending messages through the regex screener and the
// semantic evaluator. Each record transitions at most once per stage; the
// store's compare-and-set update is what enforces that under concurrency.
type PipelineService struct {
	store       *store.SQLiteStore
	screener    *screen.Screener
	eval        *EvalService
	concurrency int
	logger      *zap.Logger
}

func NewPipelineService(st *store.SQLiteStore, sc *screen.Screener, eval *EvalService, concurrency int, logger *zap.Logger) *PipelineService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PipelineService{
		store:       st,
		screener:    sc,
		eval:        eval,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run processes everything pending at the time of the call. Re-running on an
// already-processed store touches nothing. A cancelled context stops between
// records; remaining pending rows are picked up by the next run.
func (p *PipelineService) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString()}

	pending, err := p.store.SelectByStatus(store.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending messages: %w", err)
	}
	report.Screened = len(pending)
	if len(pending) == 0 {
		p.logger.Info("pipeline run: nothing pending", zap.String("run_id", report.RunID))
		return report, nil
	}

	// Stage 1: regex screening. Free, local, and first, so matched messages
	// never cost an oracle call.
	remaining := make([]store.Message, 0, len(pending))
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		msg := &pending[i]
		matched, rule := p.screener.Classify(msg.Content)
		if !matched {
			remaining = append(remaining, *msg)
			continue
		}
		// Score and flags stay unset here; those fields belong to the
		// semantic evaluator. The matched rule goes to the log only.
		ok, err := p.store.UpdateStatusFrom(msg.ID, store.StatusPending, store.StatusRegexFlag, nil, nil)
		if err != nil {
			return report, fmt.Errorf("failed to persist regex flag for %s: %w", msg.ID, err)
		}
		if ok {
			report.RegexFlagged++
			p.logger.Info("regex flagged",
				zap.String("message_id", msg.ID),
				zap.String("rule", rule.Category+"/"+rule.Name))
		}
	}

	// Stage 2: semantic evaluation, bounded fan-out. A failed evaluation is
	// recorded as unverified and never aborts the group; only store errors do.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range remaining {
		msg := remaining[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			verdict := p.eval.Evaluate(gctx, &msg)
			ok, err := p.store.UpdateStatusFrom(msg.ID, store.StatusPending, verdict.Status, verdict.Score, verdict.Flags)
			if err != nil {
				return fmt.Errorf("failed to persist verdict for %s: %w", msg.ID, err)
			}
			if !ok {
				// Lost a race with another writer; the row already left
				// pending, so this evaluation result is discarded.
				p.logger.Debug("verdict discarded, record already transitioned",
					zap.String("message_id", msg.ID))
				return nil
			}
			switch verdict.Status {
			case store.StatusSafe:
				atomic.AddInt64(&report.Safe, 1)
			case store.StatusFlagged:
				atomic.AddInt64(&report.Flagged, 1)
			case store.StatusUnverified:
				atomic.AddInt64(&report.Unverified, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	p.logger.Info("pipeline run complete",
		zap.String("run_id", report.RunID),
		zap.Int("screened", report.Screened),
		zap.Int64("regex_flagged", report.RegexFlagged),
		zap.Int64("safe", report.Safe),
		zap.Int64("flagged", report.Flagged),
		zap.Int64("unverified", report.Unverified))
	return report, nil
}
