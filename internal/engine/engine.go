package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/types"
)

// Engine is the decision core: one Evaluate call per pair per scheduled
// tick. It performs no I/O and owns no mutable state; market data, balance
// and history arrive as already-resolved values, and the implied
// PositionState mutation is returned to the caller for atomic persistence.
type Engine struct {
	minOrderValue float64
}

var _ interfaces.Engine = (*Engine)(nil)

func New(minOrderValue float64) *Engine {
	return &Engine{minOrderValue: minOrderValue}
}

type tierCandidate struct {
	tier      *types.Tier
	timeframe string
}

// Evaluate produces exactly one Decision for the pair. Sell takes precedence
// over buy; the two are never both emitted in one cycle. Every expected
// business condition comes back as a Decision reason; an error is returned
// only for malformed inputs.
func (e *Engine) Evaluate(ctx context.Context, cfg *store.PairConfig, pos types.PositionState, snap types.MarketSnapshot, balance float64, history []types.ExecutionRecord, now time.Time) (*types.EvalResult, error) {
	if cfg == nil {
		return nil, errors.New("nil pair config")
	}
	if snap.Price <= 0 {
		return nil, fmt.Errorf("invalid snapshot price %.8f for %s", snap.Price, cfg.Pair)
	}
	if balance < 0 {
		return nil, fmt.Errorf("negative balance %.2f for %s", balance, cfg.Pair)
	}

	// A disabled strategy is treated the same as a broken one: nothing to
	// evaluate against.
	if !cfg.Enabled {
		return e.none(cfg, pos, snap, types.ReasonConfigInvalid, ""), nil
	}
	if err := cfg.ValidateLevels(); err != nil {
		logger.Warn(ctx, "Threshold table rejected", "pair", cfg.Pair, "error", err)
		return e.none(cfg, pos, snap, types.ReasonConfigInvalid, ""), nil
	}

	// Inconsistent persisted state fails closed: treat as flat, surface the
	// reason, let the next cycle start clean.
	if pos.PartialSellExecuted && !pos.Armed() {
		logger.Warn(ctx, "Stale position state, failing closed",
			"pair", cfg.Pair,
			"partial_sell_executed", pos.PartialSellExecuted,
			"activation_price", pos.ActivationPrice,
		)
		pos.Reset()
		return e.none(cfg, pos, snap, types.ReasonStaleState, ""), nil
	}

	if pos.Open {
		if res := e.evaluateSell(ctx, cfg, pos, snap); res != nil {
			return res, nil
		}
		// Only hybrid mode layers additional buys onto an open position.
		if cfg.TradingMode != "hybrid" {
			return e.none(cfg, pos, snap, types.ReasonPositionOpen, ""), nil
		}
	}

	return e.evaluateBuy(ctx, cfg, pos, snap, balance, history, now), nil
}

// evaluateSell checks stop-loss first, independent of trading mode, then the
// mode's exit logic. Returns nil when no sell condition fires.
func (e *Engine) evaluateSell(ctx context.Context, cfg *store.PairConfig, pos types.PositionState, snap types.MarketSnapshot) *types.EvalResult {
	loss := -profitPercent(pos.EntryPrice, snap.Price)
	if cfg.RiskManagement.StopLossEnabled && loss >= cfg.RiskManagement.StopLossPercent {
		logger.Risk(ctx, cfg.Pair, "STOP_LOSS_TRIGGERED",
			"entry_price", pos.EntryPrice,
			"current_price", snap.Price,
			"loss_pct", loss,
			"stop_loss_pct", cfg.RiskManagement.StopLossPercent,
		)
		next := pos
		next.Reset()
		return e.sell(cfg, next, snap, sellOutcome{
			action:      types.ActionSellFull,
			sellPercent: 100,
			reason:      types.ReasonStopLoss,
		}, "", pos)
	}

	if cfg.TradingMode == "trailing" && cfg.TrailingStop.Enabled {
		out := evaluateTrailing(cfg, pos, snap.Price)
		if out.action == types.ActionNone {
			// Peak ratchet and arming still have to be persisted.
			if out.next != pos {
				return &types.EvalResult{
					Decision:  e.decision(cfg.Pair, types.ActionNone, "", 0, 0, types.ReasonPositionOpen, ""),
					NextState: out.next,
					Snapshot:  snap,
				}
			}
			return nil
		}
		return e.sell(cfg, out.next, snap, out, "", pos)
	}

	out, timeframe := evaluateFixedProfit(cfg, pos, snap.Price)
	if out.action == types.ActionNone {
		return nil
	}
	return e.sell(cfg, out.next, snap, out, timeframe, pos)
}

// evaluateBuy runs the tier match per timeframe, picks the best tier, then
// applies the cooldown gate, the sizer and the minimum-order check.
func (e *Engine) evaluateBuy(ctx context.Context, cfg *store.PairConfig, pos types.PositionState, snap types.MarketSnapshot, balance float64, history []types.ExecutionRecord, now time.Time) *types.EvalResult {
	candidates := []tierCandidate{
		{tier: matchTier(snap.Variation4h, cfg.BuyLevels), timeframe: "4h"},
		{tier: matchTier(snap.Variation24h, cfg.BuyLevels), timeframe: "24h"},
	}
	candidates = lo.Filter(candidates, func(c tierCandidate, _ int) bool { return c.tier != nil })
	if len(candidates) == 0 {
		return e.none(cfg, pos, snap, types.ReasonNoTierMatched, "")
	}

	// Larger allocation wins; the 4h candidate is listed first so an equal
	// allocation falls to the faster-reacting timeframe.
	best := lo.MaxBy(candidates, func(a, b tierCandidate) bool {
		return a.tier.AllocationPercent > b.tier.AllocationPercent
	})

	if ok, reason := allowBuy(history, now, cfg.RiskManagement.CooldownHours, cfg.RiskManagement.MaxTradesPerHour); !ok {
		logger.Debug(ctx, "Buy vetoed",
			"pair", cfg.Pair,
			"reason", reason,
			"cooldown_hours", cfg.RiskManagement.CooldownHours,
			"max_trades_per_hour", cfg.RiskManagement.MaxTradesPerHour,
		)
		return e.none(cfg, pos, snap, reason, reason)
	}

	finalPct, amount, override := sizeInvestment(balance, best.tier.AllocationPercent, cfg.RiskManagement.MaxPositionPercent, cfg.SmallBalanceThreshold)
	if amount < e.minOrderValue {
		logger.Warn(ctx, "Sized buy below exchange minimum",
			"pair", cfg.Pair,
			"amount", amount,
			"min_order_value", e.minOrderValue,
			"balance", balance,
		)
		return e.none(cfg, pos, snap, types.ReasonBelowMinimumOrder, types.ReasonBelowMinimumOrder)
	}

	if override {
		logger.Debug(ctx, "Small-balance override applied",
			"pair", cfg.Pair,
			"balance", balance,
			"threshold", cfg.SmallBalanceThreshold,
			"raw_pct", best.tier.AllocationPercent,
		)
	}

	next := pos
	qty := amount / snap.Price
	if !next.Open {
		next = types.PositionState{
			Pair:       cfg.Pair,
			Open:       true,
			EntryPrice: snap.Price,
			Quantity:   qty,
			OpenedAt:   now,
		}
	} else {
		// Layered buy: fold the new lot into the weighted average entry.
		total := next.EntryPrice*next.Quantity + snap.Price*qty
		next.Quantity += qty
		next.EntryPrice = total / next.Quantity
	}

	d := e.decision(cfg.Pair, types.ActionBuy, best.timeframe, finalPct, amount, types.ReasonTierMatched, "")
	logger.Decision(ctx, cfg.Pair, string(types.ActionBuy), finalPct, best.tier.Label,
		"timeframe", best.timeframe,
		"threshold", best.tier.Threshold,
		"amount", amount,
		"override", override,
	)
	return &types.EvalResult{Decision: d, NextState: next, Snapshot: snap}
}

func (e *Engine) sell(cfg *store.PairConfig, next types.PositionState, snap types.MarketSnapshot, out sellOutcome, timeframe string, prev types.PositionState) *types.EvalResult {
	amount := prev.Quantity * out.sellPercent / 100 * snap.Price
	d := e.decision(cfg.Pair, out.action, timeframe, out.sellPercent, amount, out.reason, "")
	return &types.EvalResult{Decision: d, NextState: next, Snapshot: snap}
}

func (e *Engine) none(cfg *store.PairConfig, pos types.PositionState, snap types.MarketSnapshot, reason, blockedBy string) *types.EvalResult {
	return &types.EvalResult{
		Decision:  e.decision(cfg.Pair, types.ActionNone, "", 0, 0, reason, blockedBy),
		NextState: pos,
		Snapshot:  snap,
	}
}

func (e *Engine) decision(pair string, action types.Action, timeframe string, pct, amount float64, reason, blockedBy string) types.Decision {
	return types.Decision{
		ID:                uuid.NewString(),
		Pair:              pair,
		Action:            action,
		Timeframe:         timeframe,
		AllocationPercent: pct,
		Amount:            amount,
		Reason:            reason,
		BlockedBy:         blockedBy,
	}
}
