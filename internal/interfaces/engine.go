package interfaces

import (
	"context"
	"time"

	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/types"
)

type Engine interface {
	Evaluate(ctx context.Context, cfg *store.PairConfig, pos types.PositionState, snap types.MarketSnapshot, balance float64, history []types.ExecutionRecord, now time.Time) (*types.EvalResult, error)
}
