package interfaces

import (
	"context"

	"spot-trading-bot/internal/types"
)

type Notifier interface {
	DecisionExecuted(ctx context.Context, d types.Decision, resp types.OrderResp) error
}
