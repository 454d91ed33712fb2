package engineobs

import (
	"context"
	"time"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/metrics"
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/trace"
	"spot-trading-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Evaluate(ctx context.Context, cfg *store.PairConfig, pos types.PositionState, snap types.MarketSnapshot, balance float64, history []types.ExecutionRecord, now time.Time) (*types.EvalResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Evaluate")
	defer span.End()

	start := time.Now()

	result, err := oe.engine.Evaluate(ctx, cfg, pos, snap, balance, history, now)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Evaluation cycle failed", err,
			"pair", cfg.Pair,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	metrics.ObserveDecision(result.Decision)

	logger.InfoSkip(ctx, 1, "Evaluation cycle completed",
		"pair", cfg.Pair,
		"action", result.Decision.Action,
		"reason", result.Decision.Reason,
		"blocked_by", result.Decision.BlockedBy,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
