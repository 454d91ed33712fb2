package interfaces

import (
	"context"

	"spot-trading-bot/internal/types"
)

type MarketData interface {
	Snapshot(ctx context.Context, pair string) (types.MarketSnapshot, error)
	Snapshots(ctx context.Context, pairs []string) (map[string]types.MarketSnapshot, error)
}
