// Package state keeps the per-instrument aggregate of timing and active signals.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"MarketScreener/internal/domain/models"
)

// ErrUnknownInstrument is the panic value for writes to an instrument that was never registered.
var ErrUnknownInstrument = errors.New("unknown instrument")

type Option func(*State)

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		s.now = now
	}
}

type asset struct {
	timing  models.Timing
	atr     map[models.TimeFrame]float64
	signals map[string]models.Signal
}

// State is the aggregate of every tracked instrument.
type State struct {
	mu     sync.RWMutex
	order  []string
	assets map[string]*asset
	now    func() time.Time
}

// New registers the instruments in order. Duplicates are ignored.
func New(symbols []string, opts ...Option) *State {
	s := &State{
		assets: make(map[string]*asset, len(symbols)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, sym := range symbols {
		if _, ok := s.assets[sym]; ok {
			continue
		}
		s.order = append(s.order, sym)
		s.assets[sym] = &asset{
			timing:  models.Timing{},
			signals: make(map[string]models.Signal),
		}
	}
	return s
}

// Symbols returns the registered instruments in registration order.
func (s *State) Symbols() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Has reports whether symbol is registered.
func (s *State) Has(symbol string) bool {
	_, ok := s.assets[symbol]
	return ok
}

func (s *State) mustAsset(symbol string) *asset {
	a, ok := s.assets[symbol]
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol))
	}
	return a
}

// Upsert applies one evaluator result and returns what changed together with the
// previous value (0 when the key was absent).
//
// A zero value evicts the key. An unchanged non-zero value refreshes the timing
// but keeps updatedAt.
func (s *State) Upsert(symbol string, sig models.Signal) (models.Change, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.mustAsset(symbol)
	key := sig.Key()
	cur, exists := a.signals[key]

	switch {
	case sig.Value == 0 && !exists:
		return models.ChangeNone, 0
	case sig.Value == 0:
		delete(a.signals, key)
		return models.ChangeEvicted, cur.Value
	case !exists:
		now := s.now()
		sig.CreatedAt, sig.UpdatedAt = now, now
		a.signals[key] = sig
		return models.ChangeInserted, 0
	case cur.Value == sig.Value:
		cur.Timing = sig.Timing
		a.signals[key] = cur
		return models.ChangeRefreshed, cur.Value
	default:
		prev := cur.Value
		cur.Value = sig.Value
		cur.Timing = sig.Timing
		cur.UpdatedAt = s.now()
		a.signals[key] = cur
		return models.ChangeUpdated, prev
	}
}

// ReplaceTiming overwrites the timing of an instrument.
func (s *State) ReplaceTiming(symbol string, t models.Timing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustAsset(symbol).timing = t.Clone()
}

// ReplaceATR overwrites the per-timeframe ATR readings of an instrument.
func (s *State) ReplaceATR(symbol string, atr map[models.TimeFrame]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustAsset(symbol).atr = cloneATR(atr)
}

func cloneATR(atr map[models.TimeFrame]float64) map[models.TimeFrame]float64 {
	if len(atr) == 0 {
		return nil
	}
	out := make(map[models.TimeFrame]float64, len(atr))
	for tf, v := range atr {
		out[tf] = v
	}
	return out
}

// Timing returns a copy of the instrument's timing.
func (s *State) Timing(symbol string) models.Timing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mustAsset(symbol).timing.Clone()
}

func (s *State) Signal(symbol, name string, tf models.TimeFrame) (models.Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.mustAsset(symbol).signals[models.SignalKey(name, tf)]
	return sig, ok
}

// Snapshot returns a deep copy with assets in registration order and signals
// newest first.
func (s *State) Snapshot(seq uint64, at time.Time) *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &models.Snapshot{
		Type:   models.SnapshotMessageType,
		Seq:    seq,
		At:     at,
		Assets: make([]models.AssetSnapshot, 0, len(s.order)),
	}
	for _, name := range s.order {
		a := s.assets[name]
		signals := make([]models.Signal, 0, len(a.signals))
		for _, sig := range a.signals {
			signals = append(signals, sig)
		}
		sort.Slice(signals, func(i, j int) bool {
			if !signals[i].CreatedAt.Equal(signals[j].CreatedAt) {
				return signals[i].CreatedAt.After(signals[j].CreatedAt)
			}
			return signals[i].Key() < signals[j].Key()
		})
		snap.Assets = append(snap.Assets, models.AssetSnapshot{
			Name:    name,
			Timing:  a.timing.Clone(),
			ATR:     cloneATR(a.atr),
			Signals: signals,
		})
	}
	return snap
}
