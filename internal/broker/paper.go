package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/types"
)

// Paper simulates fills against the snapshot reference price. Used for
// DRY_RUN mode and in tests.
type Paper struct {
	mu      sync.Mutex
	balance float64
}

var _ interfaces.Broker = (*Paper)(nil)

func NewPaper(startingBalance float64) *Paper {
	return &Paper{balance: startingBalance}
}

func (p *Paper) Balance(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

func (p *Paper) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if req.Price <= 0 {
		return types.OrderResp{}, fmt.Errorf("paper order for %s needs a reference price", req.Pair)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.Side {
	case "BUY":
		if req.Quote <= 0 {
			return types.OrderResp{}, fmt.Errorf("paper BUY for %s needs a quote amount", req.Pair)
		}
		if req.Quote > p.balance {
			return types.OrderResp{}, fmt.Errorf("paper BUY for %s exceeds balance: %.2f > %.2f", req.Pair, req.Quote, p.balance)
		}
		p.balance -= req.Quote
		return types.OrderResp{
			OrderID:  uuid.NewString(),
			Status:   "FILLED",
			Price:    req.Price,
			Quantity: req.Quote / req.Price,
		}, nil
	case "SELL":
		if req.Quantity <= 0 {
			return types.OrderResp{}, fmt.Errorf("paper SELL for %s needs a quantity", req.Pair)
		}
		p.balance += req.Quantity * req.Price
		return types.OrderResp{
			OrderID:  uuid.NewString(),
			Status:   "FILLED",
			Price:    req.Price,
			Quantity: req.Quantity,
		}, nil
	default:
		return types.OrderResp{}, fmt.Errorf("unknown order side '%s'", req.Side)
	}
}
