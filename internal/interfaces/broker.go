package interfaces

import (
	"context"

	"spot-trading-bot/internal/types"
)

type Broker interface {
	Balance(ctx context.Context) (float64, error)
	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
}
