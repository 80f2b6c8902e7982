package state

import (
	"errors"
	"testing"
	"time"

	"MarketScreener/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newState(t *testing.T, symbols ...string) (*State, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	return New(symbols, WithClock(clock.Now)), clock
}

func sig(name string, tf models.TimeFrame, v int) models.Signal {
	return models.Signal{Name: name, TimeFrame: tf, Value: v, Timing: models.MarketTiming{Reference: -2, Local: 1}}
}

func TestUpsertZeroEvicts(t *testing.T) {
	s, _ := newState(t, "EURUSD")

	change, prev := s.Upsert("EURUSD", sig("PB", models.H1, 0))
	assert.Equal(t, models.ChangeNone, change)
	assert.Equal(t, 0, prev)

	change, _ = s.Upsert("EURUSD", sig("PB", models.H1, 2))
	assert.Equal(t, models.ChangeInserted, change)

	change, prev = s.Upsert("EURUSD", sig("PB", models.H1, 0))
	assert.Equal(t, models.ChangeEvicted, change)
	assert.Equal(t, 2, prev)

	_, ok := s.Signal("EURUSD", "PB", models.H1)
	assert.False(t, ok)
	a, _ := s.Snapshot(1, time.Time{}).Asset("EURUSD")
	assert.Empty(t, a.Signals)
}

func TestUpsertIdempotentKeepsUpdatedAt(t *testing.T) {
	s, clock := newState(t, "EURUSD")
	start := clock.Now()

	s.Upsert("EURUSD", sig("PB", models.H1, 2))
	clock.Advance(time.Hour)

	refreshed := sig("PB", models.H1, 2)
	refreshed.Timing = models.MarketTiming{Reference: 4, Local: 1}
	change, prev := s.Upsert("EURUSD", refreshed)
	assert.Equal(t, models.ChangeRefreshed, change)
	assert.Equal(t, 2, prev)

	got, ok := s.Signal("EURUSD", "PB", models.H1)
	require.True(t, ok)
	assert.Equal(t, start, got.CreatedAt)
	assert.Equal(t, start, got.UpdatedAt)
	assert.Equal(t, models.MarketTiming{Reference: 4, Local: 1}, got.Timing)
}

func TestUpsertValueChangeMovesUpdatedAt(t *testing.T) {
	s, clock := newState(t, "EURUSD")
	start := clock.Now()

	s.Upsert("EURUSD", sig("PB", models.H1, 1))
	clock.Advance(time.Minute)
	change, prev := s.Upsert("EURUSD", sig("PB", models.H1, 2))
	assert.Equal(t, models.ChangeUpdated, change)
	assert.Equal(t, 1, prev)

	got, _ := s.Signal("EURUSD", "PB", models.H1)
	assert.Equal(t, 2, got.Value)
	assert.Equal(t, start, got.CreatedAt)
	assert.Equal(t, start.Add(time.Minute), got.UpdatedAt)
}

func TestUnknownInstrumentPanics(t *testing.T) {
	s, _ := newState(t, "EURUSD")
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrUnknownInstrument))
	}()
	s.Upsert("GBPUSD", sig("PB", models.H1, 1))
}

func TestSnapshotOrdering(t *testing.T) {
	s, clock := newState(t, "USDJPY", "EURUSD", "USDJPY")
	assert.Equal(t, []string{"USDJPY", "EURUSD"}, s.Symbols())

	s.Upsert("EURUSD", sig("PB", models.H1, 1))
	clock.Advance(time.Minute)
	s.Upsert("EURUSD", sig("MMX", models.M5, -1))
	clock.Advance(time.Minute)
	s.Upsert("EURUSD", sig("VCN", models.H4, 2))

	snap := s.Snapshot(7, clock.Now())
	assert.Equal(t, "update", snap.Type)
	assert.Equal(t, uint64(7), snap.Seq)
	require.Len(t, snap.Assets, 2)
	assert.Equal(t, "USDJPY", snap.Assets[0].Name)
	assert.Equal(t, "EURUSD", snap.Assets[1].Name)

	var names []string
	for _, x := range snap.Assets[1].Signals {
		names = append(names, x.Name)
	}
	assert.Equal(t, []string{"VCN", "MMX", "PB"}, names)
	assert.Equal(t, 3, snap.ActiveSignals())
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	s, _ := newState(t, "EURUSD")
	s.ReplaceTiming("EURUSD", models.Timing{models.H1: 1, models.D1: -2})
	s.Upsert("EURUSD", sig("PB", models.H1, 1))

	snap := s.Snapshot(1, time.Time{})
	snap.Assets[0].Timing[models.H1] = -4
	snap.Assets[0].Signals[0].Value = 99

	s.Upsert("EURUSD", sig("PB", models.H1, 0))
	s.ReplaceTiming("EURUSD", models.Timing{models.H1: 3})

	a, ok := snap.Asset("EURUSD")
	require.True(t, ok)
	assert.Len(t, a.Signals, 1)
	assert.Equal(t, models.TimingCode(-2), a.Timing[models.D1])
	assert.Equal(t, models.Timing{models.H1: 3}, s.Timing("EURUSD"))
}

func TestReplaceATRCopies(t *testing.T) {
	s, _ := newState(t, "EURUSD")
	atr := map[models.TimeFrame]float64{models.H1: 0.0012}
	s.ReplaceATR("EURUSD", atr)
	atr[models.H1] = 9

	snap := s.Snapshot(1, time.Time{})
	assert.Equal(t, 0.0012, snap.Assets[0].ATR[models.H1])
	snap.Assets[0].ATR[models.H1] = 7

	s.ReplaceATR("EURUSD", map[models.TimeFrame]float64{})
	assert.Nil(t, s.Snapshot(2, time.Time{}).Assets[0].ATR)
	assert.Equal(t, 7.0, snap.Assets[0].ATR[models.H1])
}
