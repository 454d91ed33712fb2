package engine

import (
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/types"
)

// sellOutcome is what the sell engine wants this cycle, together with the
// position state that committing the action implies.
type sellOutcome struct {
	action      types.Action
	sellPercent float64
	reason      string
	next        types.PositionState
}

// evaluateTrailing runs one cycle of the phased-sell state machine:
// FLAT -> ARMED -> PARTIALLY_CLOSED -> FLAT.
//
// Arming happens when profit first reaches the activation threshold; the
// fixed-profit partial sell fires exactly once while armed; afterwards the
// peak ratchet tracks the highest observed price and a retrace of
// trail_distance_percent from that peak exits the remainder. The peak is
// monotonically non-decreasing for the life of the position, even across
// cycles where price falls.
func evaluateTrailing(cfg *store.PairConfig, pos types.PositionState, price float64) sellOutcome {
	next := pos
	profit := profitPercent(pos.EntryPrice, price)

	if !pos.Armed() {
		if profit < cfg.TrailingStop.ActivationProfitPercent {
			return sellOutcome{action: types.ActionNone, next: next}
		}
		next.ActivationPrice = price
		next.PeakPrice = price
	}

	if price > next.PeakPrice {
		next.PeakPrice = price
	}

	if !next.PartialSellExecuted && profit >= cfg.TrailingStop.ActivationProfitPercent {
		next.PartialSellExecuted = true
		next.Quantity = pos.Quantity * (1 - cfg.TrailingStop.PartialSellPercent/100)
		return sellOutcome{
			action:      types.ActionSellPartial,
			sellPercent: cfg.TrailingStop.PartialSellPercent,
			reason:      types.ReasonPartialTakeProfit,
			next:        next,
		}
	}

	drawdown := (next.PeakPrice - price) / next.PeakPrice * 100
	if drawdown >= cfg.TrailingStop.TrailDistancePercent {
		next.Reset()
		return sellOutcome{
			action:      types.ActionSellFull,
			sellPercent: 100,
			reason:      types.ReasonTrailingStop,
			next:        next,
		}
	}

	return sellOutcome{action: types.ActionNone, next: next}
}

// evaluateFixedProfit applies the simple fixed-profit exits used by the safe
// and hybrid modes: no partial phase, no peak tracking. A threshold of zero
// is treated as unset.
func evaluateFixedProfit(cfg *store.PairConfig, pos types.PositionState, price float64) (sellOutcome, string) {
	profit := profitPercent(pos.EntryPrice, price)
	next := pos

	timeframe := ""
	if cfg.SellStrategy.MinProfit4h > 0 && profit >= cfg.SellStrategy.MinProfit4h {
		timeframe = "4h"
	} else if cfg.SellStrategy.MinProfit24h > 0 && profit >= cfg.SellStrategy.MinProfit24h {
		timeframe = "24h"
	}
	if timeframe == "" {
		return sellOutcome{action: types.ActionNone, next: next}, ""
	}

	next.Reset()
	return sellOutcome{
		action:      types.ActionSellFull,
		sellPercent: 100,
		reason:      types.ReasonFixedProfit,
		next:        next,
	}, timeframe
}

func profitPercent(entry, price float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (price - entry) / entry * 100
}
