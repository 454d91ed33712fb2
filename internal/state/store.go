// Package state persists per-pair position state and execution history.
//
// The engine never touches this package: it receives state as values and
// returns the implied next state, and the caller commits that state here
// atomically with the execution that caused it. Nothing is written when an
// order fails, which implements the rollback rule.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"spot-trading-bot/internal/types"
)

// historyRetention bounds how much execution history is kept per pair. The
// cooldown gate only ever looks back cooldown_hours, so a week is plenty.
const historyRetention = 7 * 24 * time.Hour

type document struct {
	Positions map[string]types.PositionState      `json:"positions"`
	History   map[string][]types.ExecutionRecord  `json:"history"`
}

// Store owns the persisted state file. Per-pair locks enforce the
// single-owner rule: two concurrent cycles for the same pair must never run
// simultaneously, since the peak ratchet and the partial-sell flag are not
// commutative.
type Store struct {
	mu    sync.Mutex
	path  string
	data  document
	locks map[string]*sync.Mutex
}

// Open loads the state file at path, starting empty if it does not exist.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: document{
			Positions: map[string]types.PositionState{},
			History:   map[string][]types.ExecutionRecord{},
		},
		locks: map[string]*sync.Mutex{},
	}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return nil, fmt.Errorf("state file %s is corrupt: %w", path, err)
	}
	if s.data.Positions == nil {
		s.data.Positions = map[string]types.PositionState{}
	}
	if s.data.History == nil {
		s.data.History = map[string][]types.ExecutionRecord{}
	}
	return s, nil
}

// Acquire takes the single-owner lock for a pair and returns the release
// function. The caller holds it for the whole evaluate-execute-commit cycle.
func (s *Store) Acquire(pair string) func() {
	s.mu.Lock()
	lk := s.locks[pair]
	if lk == nil {
		lk = &sync.Mutex{}
		s.locks[pair] = lk
	}
	s.mu.Unlock()

	lk.Lock()
	return lk.Unlock
}

// Position returns the persisted state for a pair, a fresh flat state if
// none exists yet.
func (s *Store) Position(pair string) types.PositionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.data.Positions[pair]
	if !ok {
		return types.PositionState{Pair: pair}
	}
	return pos
}

// History returns the retained execution records for a pair.
func (s *Store) History(pair string) []types.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.data.History[pair]
	out := make([]types.ExecutionRecord, len(recs))
	copy(out, recs)
	return out
}

// OpenPositions counts pairs with an open position.
func (s *Store) OpenPositions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, pos := range s.data.Positions {
		if pos.Open {
			n++
		}
	}
	return n
}

// Commit applies a Decision's state mutation and any executed records in one
// atomic write (temp file + rename). Old history is pruned on the way out.
func (s *Store) Commit(pair string, pos types.PositionState, execs ...types.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Positions[pair] = pos
	if len(execs) > 0 {
		s.data.History[pair] = append(s.data.History[pair], execs...)
	}
	s.prune(time.Now())

	return s.flush()
}

func (s *Store) prune(now time.Time) {
	cutoff := now.Add(-historyRetention)
	for pair, recs := range s.data.History {
		kept := recs[:0]
		for _, rec := range recs {
			if rec.Time.After(cutoff) {
				kept = append(kept, rec)
			}
		}
		s.data.History[pair] = kept
	}
}

func (s *Store) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
