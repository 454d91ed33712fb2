package engine

import (
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/types"
)

// matchTier selects the buy level with the most negative threshold still
// satisfied by the observed variation: a -8% drop satisfies both a -2% and a
// -8% rule, and the -8% level with its larger allocation must win. The
// comparison is inclusive, so a variation exactly equal to a threshold
// matches that level. Returns nil when no level matches.
func matchTier(variation float64, levels []store.BuyLevel) *types.Tier {
	var best *types.Tier
	for _, lvl := range levels {
		if variation > lvl.Threshold {
			continue
		}
		if best == nil || lvl.Threshold < best.Threshold {
			best = &types.Tier{
				Threshold:         lvl.Threshold,
				AllocationPercent: lvl.AllocationPercent,
				Label:             lvl.Label,
			}
		}
	}
	return best
}
