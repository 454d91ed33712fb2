package types

import "time"

// Action is the outcome of one evaluation cycle for a pair.
type Action string

const (
	ActionNone        Action = "NONE"
	ActionBuy         Action = "BUY"
	ActionSellPartial Action = "SELL_PARTIAL"
	ActionSellFull    Action = "SELL_FULL"
)

// Decision reasons. Business failures are carried here, never as errors.
const (
	ReasonTierMatched       = "tier_matched"
	ReasonNoTierMatched     = "no_tier_matched"
	ReasonStopLoss          = "stop_loss"
	ReasonFixedProfit       = "fixed_profit"
	ReasonPartialTakeProfit = "partial_take_profit"
	ReasonTrailingStop      = "trailing_stop"
	ReasonPositionOpen      = "position_open"
	ReasonConfigInvalid     = "config_invalid"
	ReasonBelowMinimumOrder = "blocked_below_minimum"
	ReasonCooldownActive    = "cooldown_active"
	ReasonRateLimited       = "rate_limited"
	ReasonStaleState        = "stale_state"
)

// MarketSnapshot is the immutable per-cycle market input for one pair.
type MarketSnapshot struct {
	Pair         string    `json:"pair"`
	Price        float64   `json:"price"`
	Variation4h  float64   `json:"variation_4h"`  // percent
	Variation24h float64   `json:"variation_24h"` // percent
	FetchedAt    time.Time `json:"fetched_at"`
}

// PositionState is the per-pair state mutated only by the sell engine.
// The caller owns persistence and must apply it atomically with the
// Decision that produced it.
type PositionState struct {
	Pair                string    `json:"pair"`
	Open                bool      `json:"open"`
	EntryPrice          float64   `json:"entry_price"`
	Quantity            float64   `json:"quantity"`
	PeakPrice           float64   `json:"peak_price"`
	ActivationPrice     float64   `json:"activation_price"`
	PartialSellExecuted bool      `json:"partial_sell_executed"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
}

// Armed reports whether the trailing stop has been activated for this position.
func (p PositionState) Armed() bool { return p.ActivationPrice > 0 }

// Reset clears all fields back to a flat position, keeping the pair.
func (p *PositionState) Reset() {
	*p = PositionState{Pair: p.Pair}
}

// ExecutionRecord is one prior buy/sell for a pair, consumed by the cooldown gate.
type ExecutionRecord struct {
	Pair   string    `json:"pair"`
	Side   string    `json:"side"` // BUY or SELL
	Amount float64   `json:"amount"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// Tier is one matched buy level.
type Tier struct {
	Threshold         float64 `json:"threshold"`
	AllocationPercent float64 `json:"allocation_percent"`
	Label             string  `json:"label"`
}

// Decision is the engine's sole output, immutable once produced.
// For BUY, AllocationPercent is a fraction of available balance and Amount
// is USD. For SELL_PARTIAL / SELL_FULL, AllocationPercent is the fraction
// of the open position to sell and Amount is its current USD value.
type Decision struct {
	ID                string  `json:"id"`
	Pair              string  `json:"pair"`
	Action            Action  `json:"action"`
	Timeframe         string  `json:"timeframe,omitempty"` // "4h" or "24h" on buys
	AllocationPercent float64 `json:"allocation_percent,omitempty"`
	Amount            float64 `json:"amount,omitempty"`
	Reason            string  `json:"reason"`
	BlockedBy         string  `json:"blocked_by,omitempty"`
}

// Blocked reports whether the decision was vetoed by a gate.
func (d Decision) Blocked() bool { return d.BlockedBy != "" }

// EvalResult bundles the Decision with the position state it implies.
// NextState must only be committed once order execution succeeds; on
// failure the caller discards it, which is the rollback rule.
type EvalResult struct {
	Decision  Decision       `json:"decision"`
	NextState PositionState  `json:"next_state"`
	Snapshot  MarketSnapshot `json:"snapshot"`
}

// OrderReq is a request to the order-execution collaborator.
type OrderReq struct {
	Pair     string
	Side     string  // BUY or SELL
	Quote    float64 // USD amount for buys
	Quantity float64 // base quantity for sells
	Price    float64 // reference price from the snapshot
	Tag      string
}

// OrderResp reports the fill back from the broker.
type OrderResp struct {
	OrderID  string  `json:"order_id"`
	Status   string  `json:"status"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}
