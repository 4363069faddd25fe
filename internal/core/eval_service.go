package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"intel.gg/discord-intel/internal/store"
)

// Verdict is a single evaluation outcome ready to persist.
type Verdict struct {
	Status store.Status
	Score  *float64
	Flags  *string
}

// EvalService maps oracle output onto safety statuses. Every failure path
// lands on unverified; no error can promote a message toward safe.
type EvalService struct {
	oracle    Oracle
	threshold float64
	timeout   time.Duration
	logger    *zap.Logger
}

func NewEvalService(oracle Oracle, threshold float64, timeout time.Duration, logger *zap.Logger) *EvalService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EvalService{
		oracle:    oracle,
		threshold: threshold,
		timeout:   timeout,
		logger:    logger,
	}
}

// Evaluate scores one message. Exactly one oracle attempt is made; on any
// failure (no credential, timeout, transport error, unparseable response)
// the verdict is unverified with a short failure note.
func (e *EvalService) Evaluate(ctx context.Context, msg *store.Message) Verdict {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.oracle.Score(callCtx, msg.Content, msg.AuthorName, msg.ChannelName)
	if err != nil {
		e.logger.Warn("oracle call failed, marking unverified",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		note := fmt.Sprintf("evaluator failure: %v", err)
		return Verdict{Status: store.StatusUnverified, Flags: &note}
	}

	score := resp.Score
	verdict := Verdict{Score: &score}
	if resp.Reason != "" {
		reason := resp.Reason
		verdict.Flags = &reason
	}
	if score >= e.threshold {
		verdict.Status = store.StatusFlagged
	} else {
		verdict.Status = store.StatusSafe
	}
	return verdict
}
