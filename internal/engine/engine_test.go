package engine

import (
	"context"
	"testing"
	"time"

	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/types"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fullConfig(mode string) *store.PairConfig {
	cfg := &store.PairConfig{Pair: "BTC/USDT", Enabled: true, TradingMode: mode}
	cfg.BuyLevels = testLevels()
	cfg.SellStrategy.MinProfit4h = 3
	cfg.SellStrategy.MinProfit24h = 6
	cfg.TrailingStop.Enabled = mode == "trailing"
	cfg.TrailingStop.ActivationProfitPercent = 8
	cfg.TrailingStop.TrailDistancePercent = 4
	cfg.TrailingStop.PartialSellPercent = 50
	cfg.RiskManagement.StopLossEnabled = true
	cfg.RiskManagement.StopLossPercent = 15
	cfg.RiskManagement.MaxPositionPercent = 30
	cfg.RiskManagement.CooldownHours = 4
	cfg.RiskManagement.MaxTradesPerHour = 3
	cfg.SmallBalanceThreshold = 10
	return cfg
}

func snapshot(price, v4, v24 float64) types.MarketSnapshot {
	return types.MarketSnapshot{Pair: "BTC/USDT", Price: price, Variation4h: v4, Variation24h: v24, FetchedAt: testNow}
}

func flat() types.PositionState {
	return types.PositionState{Pair: "BTC/USDT"}
}

func TestEvaluateBuyOpensPosition(t *testing.T) {
	eng := New(5)
	res, err := eng.Evaluate(context.Background(), fullConfig("safe"), flat(), snapshot(100, -8.58, -1), 50, nil, testNow)
	if err != nil {
		t.Fatal(err)
	}

	d := res.Decision
	if d.Action != types.ActionBuy {
		t.Fatalf("expected BUY, got %s (%s)", d.Action, d.Reason)
	}
	if d.Timeframe != "4h" {
		t.Errorf("expected the 4h timeframe, got %s", d.Timeframe)
	}
	// raw 50% capped to 30% of $50
	if d.AllocationPercent != 30 {
		t.Errorf("expected allocation 30, got %.2f", d.AllocationPercent)
	}
	if d.Amount != 15 {
		t.Errorf("expected amount 15.00, got %.4f", d.Amount)
	}
	if !res.NextState.Open || res.NextState.EntryPrice != 100 {
		t.Errorf("expected an open position at entry 100, got %+v", res.NextState)
	}
	if res.NextState.Quantity != 0.15 {
		t.Errorf("expected quantity 0.15, got %.6f", res.NextState.Quantity)
	}
}

func TestEvaluateBuySmallBalanceOverride(t *testing.T) {
	eng := New(5)
	res, err := eng.Evaluate(context.Background(), fullConfig("safe"), flat(), snapshot(100, -8.58, -1), 9.01, nil, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Action != types.ActionBuy {
		t.Fatalf("expected BUY, got %s (%s)", res.Decision.Action, res.Decision.Reason)
	}
	if res.Decision.AllocationPercent != 100 {
		t.Errorf("expected the override to force 100%%, got %.2f", res.Decision.AllocationPercent)
	}
	if res.Decision.Amount != 9.01 {
		t.Errorf("expected amount 9.01, got %.4f", res.Decision.Amount)
	}
}

func TestEvaluateNoTierMatched(t *testing.T) {
	eng := New(5)
	res, err := eng.Evaluate(context.Background(), fullConfig("safe"), flat(), snapshot(100, -1, -1.5), 50, nil, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Action != types.ActionNone || res.Decision.Reason != types.ReasonNoTierMatched {
		t.Errorf("expected NONE/no_tier_matched, got %s/%s", res.Decision.Action, res.Decision.Reason)
	}
}

func TestEvaluateTimeframeTieBreak(t *testing.T) {
	eng := New(5)

	// 24h tier allocates more: it wins.
	res, _ := eng.Evaluate(context.Background(), fullConfig("safe"), flat(), snapshot(100, -2.5, -9), 50, nil, testNow)
	if res.Decision.Timeframe != "24h" {
		t.Errorf("expected the larger 24h allocation to win, got %s", res.Decision.Timeframe)
	}

	// Equal allocations: the shorter timeframe reacts faster and wins.
	res, _ = eng.Evaluate(context.Background(), fullConfig("safe"), flat(), snapshot(100, -8.1, -8.2), 50, nil, testNow)
	if res.Decision.Timeframe != "4h" {
		t.Errorf("expected the 4h timeframe on an allocation tie, got %s", res.Decision.Timeframe)
	}
}

func TestEvaluateCooldownBlocksBuy(t *testing.T) {
	eng := New(5)
	history := []types.ExecutionRecord{
		{Pair: "BTC/USDT", Side: "BUY", Time: testNow.Add(-2 * time.Hour)},
	}
	res, err := eng.Evaluate(context.Background(), fullConfig("safe"), flat(), snapshot(100, -8.58, -1), 50, history, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Action != types.ActionNone {
		t.Fatalf("cooldown must veto the buy, got %s", res.Decision.Action)
	}
	if res.Decision.BlockedBy != types.ReasonCooldownActive {
		t.Errorf("expected blocked_by %s, got %s", types.ReasonCooldownActive, res.Decision.BlockedBy)
	}
}

func TestEvaluateBelowMinimumOrderIsFlagged(t *testing.T) {
	cfg := fullConfig("safe")
	cfg.SmallBalanceThreshold = 0.5 // keep the override out of the way

	eng := New(5)
	res, err := eng.Evaluate(context.Background(), cfg, flat(), snapshot(100, -2.5, -1), 1, nil, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Action != types.ActionNone {
		t.Fatalf("expected NONE, got %s", res.Decision.Action)
	}
	if res.Decision.BlockedBy != types.ReasonBelowMinimumOrder {
		t.Errorf("a sub-minimum buy must be flagged, not silently dropped; got blocked_by '%s'", res.Decision.BlockedBy)
	}
}

func TestEvaluateStopLossBeatsTrailing(t *testing.T) {
	eng := New(5)
	pos := types.PositionState{
		Pair:                "BTC/USDT",
		Open:                true,
		EntryPrice:          100,
		Quantity:            1,
		ActivationPrice:     108,
		PeakPrice:           110,
		PartialSellExecuted: true,
	}
	res, err := eng.Evaluate(context.Background(), fullConfig("trailing"), pos, snapshot(84, -8.58, -9), 50, nil, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Action != types.ActionSellFull {
		t.Fatalf("expected SELL_FULL, got %s", res.Decision.Action)
	}
	if res.Decision.Reason != types.ReasonStopLoss {
		t.Errorf("stop-loss must take precedence over trailing state, got %s", res.Decision.Reason)
	}
	if res.NextState.Open {
		t.Error("stop-loss exit must clear the position")
	}
}

func TestEvaluateSellAndBuyAreMutuallyExclusive(t *testing.T) {
	// Deep drop and a triggered stop-loss in the same cycle: the sell wins
	// and no buy is emitted.
	eng := New(5)
	pos := types.PositionState{Pair: "BTC/USDT", Open: true, EntryPrice: 100, Quantity: 1}
	res, _ := eng.Evaluate(context.Background(), fullConfig("safe"), pos, snapshot(80, -10, -12), 50, nil, testNow)
	if res.Decision.Action != types.ActionSellFull {
		t.Fatalf("expected the sell to short-circuit, got %s", res.Decision.Action)
	}
}

func TestEvaluatePositionOpenBlocksBuyOutsideHybrid(t *testing.T) {
	eng := New(5)
	pos := types.PositionState{Pair: "BTC/USDT", Open: true, EntryPrice: 100, Quantity: 1}
	res, _ := eng.Evaluate(context.Background(), fullConfig("safe"), pos, snapshot(99, -8.58, -1), 50, nil, testNow)
	if res.Decision.Action != types.ActionNone || res.Decision.Reason != types.ReasonPositionOpen {
		t.Errorf("expected NONE/position_open, got %s/%s", res.Decision.Action, res.Decision.Reason)
	}
}

func TestEvaluateHybridLayersOntoOpenPosition(t *testing.T) {
	eng := New(5)
	pos := types.PositionState{Pair: "BTC/USDT", Open: true, EntryPrice: 110, Quantity: 1}
	res, _ := eng.Evaluate(context.Background(), fullConfig("hybrid"), pos, snapshot(100, -8.58, -1), 50, nil, testNow)
	if res.Decision.Action != types.ActionBuy {
		t.Fatalf("hybrid mode must layer buys, got %s (%s)", res.Decision.Action, res.Decision.Reason)
	}
	if res.NextState.Quantity <= 1 {
		t.Errorf("expected the layered lot to grow the position, got %.4f", res.NextState.Quantity)
	}
	if res.NextState.EntryPrice >= 110 || res.NextState.EntryPrice <= 100 {
		t.Errorf("expected a weighted average entry between 100 and 110, got %.4f", res.NextState.EntryPrice)
	}
}

func TestEvaluateTrailingPersistsPeakRatchet(t *testing.T) {
	eng := New(5)
	pos := types.PositionState{
		Pair:                "BTC/USDT",
		Open:                true,
		EntryPrice:          100,
		Quantity:            0.5,
		ActivationPrice:     108,
		PeakPrice:           110,
		PartialSellExecuted: true,
	}
	res, err := eng.Evaluate(context.Background(), fullConfig("trailing"), pos, snapshot(112, -1, -1), 50, nil, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Action != types.ActionNone {
		t.Fatalf("expected no sell while trailing up, got %s", res.Decision.Action)
	}
	if res.NextState.PeakPrice != 112 {
		t.Errorf("the ratcheted peak must be handed back for persistence, got %.2f", res.NextState.PeakPrice)
	}
}

func TestEvaluateStaleStateFailsClosed(t *testing.T) {
	eng := New(5)
	stale := types.PositionState{
		Pair:                "BTC/USDT",
		Open:                true,
		EntryPrice:          100,
		Quantity:            1,
		PartialSellExecuted: true, // no activation price: inconsistent
	}
	res, err := eng.Evaluate(context.Background(), fullConfig("trailing"), stale, snapshot(120, -1, -1), 50, nil, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Action != types.ActionNone || res.Decision.Reason != types.ReasonStaleState {
		t.Fatalf("expected NONE/stale_state, got %s/%s", res.Decision.Action, res.Decision.Reason)
	}
	if res.NextState.Open || res.NextState.PartialSellExecuted {
		t.Errorf("stale state must reset to flat, got %+v", res.NextState)
	}
}

func TestEvaluateDisabledStrategy(t *testing.T) {
	cfg := fullConfig("safe")
	cfg.Enabled = false

	eng := New(5)
	res, _ := eng.Evaluate(context.Background(), cfg, flat(), snapshot(100, -8.58, -1), 50, nil, testNow)
	if res.Decision.Action != types.ActionNone || res.Decision.Reason != types.ReasonConfigInvalid {
		t.Errorf("expected NONE/config_invalid, got %s/%s", res.Decision.Action, res.Decision.Reason)
	}
}

func TestEvaluateInvalidThresholdTable(t *testing.T) {
	cfg := fullConfig("safe")
	cfg.BuyLevels = []store.BuyLevel{
		{Threshold: -5, AllocationPercent: 10},
		{Threshold: -2, AllocationPercent: 5}, // breaks decreasing order
	}

	eng := New(5)
	res, err := eng.Evaluate(context.Background(), cfg, flat(), snapshot(100, -8.58, -1), 50, nil, testNow)
	if err != nil {
		t.Fatal("config problems must surface as a reason, not an error")
	}
	if res.Decision.Reason != types.ReasonConfigInvalid {
		t.Errorf("expected config_invalid, got %s", res.Decision.Reason)
	}
}

func TestEvaluateFixedProfitSellInSafeMode(t *testing.T) {
	eng := New(5)
	pos := types.PositionState{Pair: "BTC/USDT", Open: true, EntryPrice: 100, Quantity: 1}
	res, _ := eng.Evaluate(context.Background(), fullConfig("safe"), pos, snapshot(104, -1, -1), 50, nil, testNow)
	if res.Decision.Action != types.ActionSellFull {
		t.Fatalf("expected SELL_FULL at +4%% with a 3%% threshold, got %s", res.Decision.Action)
	}
	if res.Decision.Reason != types.ReasonFixedProfit {
		t.Errorf("expected fixed_profit, got %s", res.Decision.Reason)
	}
	if res.Decision.Amount != 104 {
		t.Errorf("expected sell amount 104.00, got %.4f", res.Decision.Amount)
	}
}

func TestEvaluateRejectsMalformedInput(t *testing.T) {
	eng := New(5)
	if _, err := eng.Evaluate(context.Background(), nil, flat(), snapshot(100, 0, 0), 50, nil, testNow); err == nil {
		t.Error("nil config must be an error")
	}
	if _, err := eng.Evaluate(context.Background(), fullConfig("safe"), flat(), snapshot(0, 0, 0), 50, nil, testNow); err == nil {
		t.Error("non-positive price must be an error")
	}
	if _, err := eng.Evaluate(context.Background(), fullConfig("safe"), flat(), snapshot(100, 0, 0), -1, nil, testNow); err == nil {
		t.Error("negative balance must be an error")
	}
}
