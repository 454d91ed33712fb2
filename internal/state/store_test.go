package state

import (
	"path/filepath"
	"testing"
	"time"

	"spot-trading-bot/internal/types"
)

func TestStoreCommitAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	pos := s.Position("BTC/USDT")
	if pos.Open {
		t.Fatal("unknown pair must start flat")
	}

	pos.Open = true
	pos.EntryPrice = 100
	pos.Quantity = 0.5
	pos.PeakPrice = 110
	pos.PartialSellExecuted = true
	pos.ActivationPrice = 108

	rec := types.ExecutionRecord{Pair: "BTC/USDT", Side: "BUY", Amount: 50, Price: 100, Time: time.Now().UTC()}
	if err := s.Commit("BTC/USDT", pos, rec); err != nil {
		t.Fatal(err)
	}

	// Reload from disk and verify the mutation survived.
	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	got := s2.Position("BTC/USDT")
	if !got.Open || got.PeakPrice != 110 || !got.PartialSellExecuted {
		t.Errorf("reloaded state does not match committed state: %+v", got)
	}
	hist := s2.History("BTC/USDT")
	if len(hist) != 1 || hist[0].Side != "BUY" {
		t.Errorf("expected one BUY record, got %+v", hist)
	}
}

func TestStoreUncommittedStateIsNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	pos := s.Position("ETH/USDT")
	pos.Open = true
	// No Commit: an order failure leaves persisted state untouched.

	if got := s.Position("ETH/USDT"); got.Open {
		t.Error("mutating the returned value must not change the store")
	}
}

func TestStorePrunesOldHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	old := types.ExecutionRecord{Pair: "BTC/USDT", Side: "BUY", Time: time.Now().UTC().Add(-30 * 24 * time.Hour)}
	fresh := types.ExecutionRecord{Pair: "BTC/USDT", Side: "BUY", Time: time.Now().UTC()}
	if err := s.Commit("BTC/USDT", types.PositionState{Pair: "BTC/USDT"}, old, fresh); err != nil {
		t.Fatal(err)
	}

	hist := s.History("BTC/USDT")
	if len(hist) != 1 {
		t.Fatalf("expected the month-old record to be pruned, got %d records", len(hist))
	}
	if !hist[0].Time.Equal(fresh.Time) {
		t.Error("the fresh record must survive pruning")
	}
}

func TestStoreAcquireIsPerPair(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}

	release := s.Acquire("BTC/USDT")

	// A different pair must not be blocked by BTC's owner lock.
	done := make(chan struct{})
	go func() {
		r := s.Acquire("ETH/USDT")
		r()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acquiring a different pair deadlocked")
	}
	release()
}

func TestStoreOpenPositions(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Commit("BTC/USDT", types.PositionState{Pair: "BTC/USDT", Open: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit("ETH/USDT", types.PositionState{Pair: "ETH/USDT"}); err != nil {
		t.Fatal(err)
	}

	if n := s.OpenPositions(); n != 1 {
		t.Errorf("expected 1 open position, got %d", n)
	}
}
