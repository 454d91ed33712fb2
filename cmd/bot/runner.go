package main

import (
	"context"
	"time"

	"github.com/samber/lo"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/metrics"
	"spot-trading-bot/internal/state"
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/tradelog"
	"spot-trading-bot/internal/types"
)

// runner drives one evaluation cycle per pair per tick. The engine stays
// pure; everything stateful (market fetch, balance, persistence, order
// placement) happens here, and position state is only committed after the
// broker confirms the fill.
type runner struct {
	cfg      *store.Config
	eng      interfaces.Engine
	brk      interfaces.Broker
	mkt      interfaces.MarketData
	states   *state.Store
	notifier interfaces.Notifier
}

func (r *runner) tick(ctx context.Context) {
	pairs := lo.Map(r.cfg.Pairs, func(p *store.PairConfig, _ int) string { return p.Pair })
	snaps, err := r.mkt.Snapshots(ctx, pairs)
	if err != nil {
		logger.ErrorWithErr(ctx, "Snapshot fetch aborted", err)
		return
	}

	for _, pairCfg := range r.cfg.Pairs {
		snap, ok := snaps[pairCfg.Pair]
		if !ok {
			continue
		}
		r.evaluatePair(ctx, pairCfg, snap)
	}

	metrics.SetOpenPositions(r.states.OpenPositions())
}

// evaluatePair holds the pair's single-owner lock across the whole
// evaluate-execute-commit cycle so decisions apply in the order they were
// computed.
func (r *runner) evaluatePair(ctx context.Context, pairCfg *store.PairConfig, snap types.MarketSnapshot) {
	release := r.states.Acquire(pairCfg.Pair)
	defer release()

	balance, err := r.brk.Balance(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Balance fetch failed, skipping pair", err, "pair", pairCfg.Pair)
		return
	}

	pos := r.states.Position(pairCfg.Pair)
	history := r.states.History(pairCfg.Pair)

	res, err := r.eng.Evaluate(ctx, pairCfg, pos, snap, balance, history, time.Now().UTC())
	if err != nil {
		logger.ErrorWithErr(ctx, "Evaluation failed", err, "pair", pairCfg.Pair)
		return
	}

	r.apply(ctx, pairCfg, pos, res)

	_ = tradelog.AppendDecision(tradelog.DecisionEntry{
		Pair:     pairCfg.Pair,
		Decision: res.Decision,
		Snapshot: res.Snapshot,
		State:    r.states.Position(pairCfg.Pair),
	})
}

// apply executes the decision and commits the implied state mutation. An
// order failure leaves the persisted state untouched, as if NONE had been
// decided.
func (r *runner) apply(ctx context.Context, pairCfg *store.PairConfig, prev types.PositionState, res *types.EvalResult) {
	d := res.Decision

	switch d.Action {
	case types.ActionNone:
		// Peak ratchet, arming and stale-state resets still persist.
		if res.NextState != prev {
			if err := r.states.Commit(pairCfg.Pair, res.NextState); err != nil {
				logger.ErrorWithErr(ctx, "State commit failed", err, "pair", pairCfg.Pair)
			}
		}
		return

	case types.ActionBuy:
		resp, err := r.brk.PlaceOrder(ctx, types.OrderReq{
			Pair:  pairCfg.Pair,
			Side:  "BUY",
			Quote: d.Amount,
			Price: res.Snapshot.Price,
			Tag:   d.Reason,
		})
		if err != nil {
			return
		}
		r.commitExecuted(ctx, pairCfg.Pair, res, resp, "BUY", d.Amount)

	case types.ActionSellPartial, types.ActionSellFull:
		qty := prev.Quantity * d.AllocationPercent / 100
		resp, err := r.brk.PlaceOrder(ctx, types.OrderReq{
			Pair:     pairCfg.Pair,
			Side:     "SELL",
			Quantity: qty,
			Price:    res.Snapshot.Price,
			Tag:      d.Reason,
		})
		if err != nil {
			return
		}
		r.commitExecuted(ctx, pairCfg.Pair, res, resp, "SELL", qty*res.Snapshot.Price)
	}
}

func (r *runner) commitExecuted(ctx context.Context, pair string, res *types.EvalResult, resp types.OrderResp, side string, amount float64) {
	rec := types.ExecutionRecord{
		Pair:   pair,
		Side:   side,
		Amount: amount,
		Price:  resp.Price,
		Time:   time.Now().UTC(),
	}
	if err := r.states.Commit(pair, res.NextState, rec); err != nil {
		logger.ErrorWithErr(ctx, "State commit failed after fill", err, "pair", pair, "order_id", resp.OrderID)
	}

	logger.Trade(ctx, pair, side, amount, resp.Price, resp.OrderID, "reason", res.Decision.Reason)
	_ = tradelog.Append(tradelog.Entry{
		Pair:    pair,
		Side:    side,
		Amount:  amount,
		Price:   resp.Price,
		OrderID: resp.OrderID,
		Reason:  res.Decision.Reason,
	})

	if err := r.notifier.DecisionExecuted(ctx, res.Decision, resp); err != nil {
		logger.Warn(ctx, "Notification failed", "pair", pair, "error", err)
	}
}
