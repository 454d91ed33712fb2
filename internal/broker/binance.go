package broker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/types"
)

// Binance places real spot market orders. Kept deliberately thin: the
// engine's decisions arrive fully sized, so this only translates them into
// exchange calls.
type Binance struct {
	client     *binance.Client
	quoteAsset string
}

var _ interfaces.Broker = (*Binance)(nil)

func NewBinance(apiKey, secretKey, quoteAsset string) *Binance {
	return &Binance{
		client:     binance.NewClient(apiKey, secretKey),
		quoteAsset: quoteAsset,
	}
}

// Balance returns the free quote-asset balance.
func (b *Binance) Balance(ctx context.Context) (float64, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch account: %w", err)
	}
	for _, bal := range acct.Balances {
		if bal.Asset == b.quoteAsset {
			free, err := strconv.ParseFloat(bal.Free, 64)
			if err != nil {
				return 0, fmt.Errorf("parse %s balance '%s': %w", b.quoteAsset, bal.Free, err)
			}
			return free, nil
		}
	}
	return 0, nil
}

func (b *Binance) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(symbol(req.Pair)).
		Type(binance.OrderTypeMarket)

	switch req.Side {
	case "BUY":
		svc = svc.Side(binance.SideTypeBuy).
			QuoteOrderQty(strconv.FormatFloat(req.Quote, 'f', 2, 64))
	case "SELL":
		svc = svc.Side(binance.SideTypeSell).
			Quantity(strconv.FormatFloat(req.Quantity, 'f', 8, 64))
	default:
		return types.OrderResp{}, fmt.Errorf("unknown order side '%s'", req.Side)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("place %s order for %s: %w", req.Side, req.Pair, err)
	}

	executed, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	quote, _ := strconv.ParseFloat(res.CummulativeQuoteQuantity, 64)
	price := req.Price
	if executed > 0 && quote > 0 {
		price = quote / executed
	}

	return types.OrderResp{
		OrderID:  strconv.FormatInt(res.OrderID, 10),
		Status:   string(res.Status),
		Price:    price,
		Quantity: executed,
	}, nil
}

func symbol(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
}
