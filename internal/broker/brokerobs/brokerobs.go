package brokerobs

import (
	"context"
	"time"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/metrics"
	"spot-trading-bot/internal/trace"
	"spot-trading-bot/internal/types"
)

type observableBroker struct {
	broker interfaces.Broker
	mode   string // paper or live
}

var _ interfaces.Broker = (*observableBroker)(nil)

func Wrap(brk interfaces.Broker, mode string) interfaces.Broker {
	return &observableBroker{broker: brk, mode: mode}
}

func (ob *observableBroker) Balance(ctx context.Context) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Balance")
	defer span.End()

	bal, err := ob.broker.Balance(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Balance fetch failed", err, "mode", ob.mode)
		return 0, err
	}
	metrics.SetEquity(bal)
	return bal, nil
}

func (ob *observableBroker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceOrder")
	defer span.End()

	start := time.Now()
	resp, err := ob.broker.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Order placement failed", err,
			"pair", req.Pair,
			"side", req.Side,
			"mode", ob.mode,
		)
		return types.OrderResp{}, err
	}

	metrics.ObserveOrder(ob.mode, req.Side)
	logger.InfoSkip(ctx, 1, "Order placed",
		"pair", req.Pair,
		"side", req.Side,
		"mode", ob.mode,
		"order_id", resp.OrderID,
		"status", resp.Status,
		"price", resp.Price,
		"quantity", resp.Quantity,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}
