// Package market resolves per-pair market snapshots from Binance spot.
// The engine never calls this directly; the runner fetches snapshots and
// hands them in as values.
package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/types"
)

const (
	klineInterval = "1h"
	// 25 hourly candles cover the 24h lookback plus the running candle.
	klineLimit = 25

	maxFetchRetries = 3
)

type Binance struct {
	client  *binance.Client
	limiter *rate.Limiter
}

var _ interfaces.MarketData = (*Binance)(nil)

func NewBinance(apiKey, secretKey string) *Binance {
	return &Binance{
		client: binance.NewClient(apiKey, secretKey),
		// Binance allows far more, but the bot only needs one klines call
		// per pair per tick.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// Snapshot fetches the current price and the 4h/24h percent variation for
// one pair. Transient failures are retried with exponential backoff.
func (b *Binance) Snapshot(ctx context.Context, pair string) (types.MarketSnapshot, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return types.MarketSnapshot{}, err
	}

	var klines []*binance.Kline
	op := func() error {
		var err error
		klines, err = b.client.NewKlinesService().
			Symbol(symbol(pair)).
			Interval(klineInterval).
			Limit(klineLimit).
			Do(ctx)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("fetch klines for %s: %w", pair, err)
	}
	if len(klines) < klineLimit {
		return types.MarketSnapshot{}, fmt.Errorf("fetch klines for %s: got %d candles, need %d", pair, len(klines), klineLimit)
	}

	closes := lo.Map(klines, func(k *binance.Kline, _ int) float64 {
		v, _ := strconv.ParseFloat(k.Close, 64)
		return v
	})

	price := closes[len(closes)-1]
	ref4h := closes[len(closes)-1-4]
	ref24h := closes[0]
	if price <= 0 || ref4h <= 0 || ref24h <= 0 {
		return types.MarketSnapshot{}, fmt.Errorf("fetch klines for %s: zero close price", pair)
	}

	return types.MarketSnapshot{
		Pair:         pair,
		Price:        price,
		Variation4h:  (price - ref4h) / ref4h * 100,
		Variation24h: (price - ref24h) / ref24h * 100,
		FetchedAt:    time.Now().UTC(),
	}, nil
}

// Snapshots fetches all pairs concurrently. A pair that fails is logged and
// left out of the result rather than failing the whole tick.
func (b *Binance) Snapshots(ctx context.Context, pairs []string) (map[string]types.MarketSnapshot, error) {
	var (
		mu   sync.Mutex
		out  = make(map[string]types.MarketSnapshot, len(pairs))
		g, gctx = errgroup.WithContext(ctx)
	)

	for _, pair := range pairs {
		local := pair
		g.Go(func() error {
			snap, err := b.Snapshot(gctx, local)
			if err != nil {
				logger.Warn(gctx, "Snapshot fetch failed, skipping pair", "pair", local, "error", err)
				return nil
			}
			mu.Lock()
			out[local] = snap
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// symbol maps a configured pair like "BTC/USDT" to the exchange symbol.
func symbol(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
}
