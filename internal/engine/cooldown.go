package engine

import (
	"time"

	"spot-trading-bot/internal/types"
)

// allowBuy gates the buy path against execution history. It is a pure query
// and owns no state. Two independent checks: any prior buy within
// cooldownHours of now blocks, and reaching maxTradesPerHour buys inside the
// trailing one-hour window blocks. A zero parameter disables its check.
func allowBuy(history []types.ExecutionRecord, now time.Time, cooldownHours float64, maxTradesPerHour int) (bool, string) {
	cooldown := time.Duration(cooldownHours * float64(time.Hour))
	windowStart := now.Add(-time.Hour)

	recent := 0
	for _, rec := range history {
		if rec.Side != "BUY" {
			continue
		}
		if cooldown > 0 && now.Sub(rec.Time) < cooldown {
			return false, types.ReasonCooldownActive
		}
		if rec.Time.After(windowStart) {
			recent++
		}
	}
	if maxTradesPerHour > 0 && recent >= maxTradesPerHour {
		return false, types.ReasonRateLimited
	}
	return true, ""
}
