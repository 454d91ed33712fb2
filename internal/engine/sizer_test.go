package engine

import "testing"

func TestSizeInvestmentSmallBalanceOverride(t *testing.T) {
	// balance=9.01, threshold=10, raw=50% -> final=100%, amount=9.01
	final, amount, override := sizeInvestment(9.01, 50, 30, 10)
	if !override {
		t.Error("expected the small-balance override to apply")
	}
	if final != 100 {
		t.Errorf("expected final percent 100, got %.2f", final)
	}
	if amount != 9.01 {
		t.Errorf("expected amount 9.01, got %.4f", amount)
	}
}

func TestSizeInvestmentCapApplied(t *testing.T) {
	// balance=50, raw=50%, cap=30% -> final=30%, amount=15
	final, amount, override := sizeInvestment(50, 50, 30, 10)
	if override {
		t.Error("override must not apply at or above the threshold")
	}
	if final != 30 {
		t.Errorf("expected final percent 30, got %.2f", final)
	}
	if amount != 15 {
		t.Errorf("expected amount 15.00, got %.4f", amount)
	}
}

func TestSizeInvestmentRawBelowCap(t *testing.T) {
	final, amount, _ := sizeInvestment(100, 20, 30, 10)
	if final != 20 {
		t.Errorf("expected final percent 20, got %.2f", final)
	}
	if amount != 20 {
		t.Errorf("expected amount 20.00, got %.4f", amount)
	}
}

func TestSizeInvestmentBalanceEqualToThresholdTakesCappedBranch(t *testing.T) {
	final, _, override := sizeInvestment(10, 80, 30, 10)
	if override {
		t.Error("balance equal to the threshold must take the capped branch")
	}
	if final != 30 {
		t.Errorf("expected final percent 30, got %.2f", final)
	}
}

func TestSizeInvestmentOverrideIgnoresCap(t *testing.T) {
	// The cap must NOT be applied under the override, or near-minimum
	// balances produce sub-minimum orders.
	final, amount, override := sizeInvestment(5, 10, 25, 10)
	if !override || final != 100 {
		t.Fatalf("expected uncapped 100%% override, got final=%.2f override=%v", final, override)
	}
	if amount != 5 {
		t.Errorf("expected amount 5.00, got %.4f", amount)
	}
}
