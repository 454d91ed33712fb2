package engine

import "math"

// sizeInvestment turns a raw tier allocation into the final allocation and
// USD amount.
//
// Below the small-balance threshold the allocation is forced to 100% and the
// max-position cap is skipped: capping a near-minimum balance produces
// orders under the exchange minimum that silently no-op, which is the defect
// this override exists to eliminate. A balance exactly equal to the
// threshold takes the capped branch.
func sizeInvestment(balance, rawPercent, maxPositionPercent, smallBalanceThreshold float64) (finalPercent, amount float64, override bool) {
	if balance < smallBalanceThreshold {
		finalPercent = 100
		override = true
	} else {
		finalPercent = math.Min(rawPercent, maxPositionPercent)
	}
	amount = balance * finalPercent / 100
	return finalPercent, amount, override
}
