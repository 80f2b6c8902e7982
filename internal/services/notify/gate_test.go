package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"MarketScreener/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	mu     sync.Mutex
	values map[string]int
	writes int
	err    error
}

func newMapStore() *mapStore { return &mapStore{values: map[string]int{}} }

func (s *mapStore) GetInt(_ context.Context, key string, def int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	v, ok := s.values[key]
	if !ok {
		return def, nil
	}
	return v, nil
}

func (s *mapStore) SetInt(_ context.Context, key string, v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.values[key] = v
	s.writes++
	return nil
}

func TestKey(t *testing.T) {
	assert.Equal(t, "EURUSD-H1-PB-EMAIL", Key("EURUSD", models.H1, "PB", models.ChannelEmail))
	assert.Equal(t, "EURUSD-M5-MMX-SND", Key("EURUSD", models.M5, "MMX", models.ChannelSound))
}

func TestRatchetMonotonic(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	g := NewGate(store)
	const key = "EURUSD-H1-PB-EMAIL"

	steps := []struct {
		v      int
		notify bool
		stored int
	}{
		{1, true, 1},
		{1, false, 1},
		{2, true, 2},
		{1, false, 2},
		{2, false, 2},
		{0, false, 0},
		{-1, true, -1},
		{-2, true, -2},
		{-1, false, -2},
	}
	for i, s := range steps {
		ok, err := g.ShouldNotify(ctx, key, s.v)
		require.NoError(t, err)
		assert.Equal(t, s.notify, ok, "step %d value %d", i, s.v)
		assert.Equal(t, s.stored, store.values[key], "step %d value %d", i, s.v)
	}
}

func TestRatchetSignFlip(t *testing.T) {
	ctx := context.Background()
	g := NewGate(newMapStore())

	// passing through zero re-arms the opposite direction
	ok, _ := g.ShouldNotify(ctx, "a", 2)
	assert.True(t, ok)
	ok, _ = g.ShouldNotify(ctx, "a", 0)
	assert.False(t, ok)
	ok, _ = g.ShouldNotify(ctx, "a", -1)
	assert.True(t, ok)

	// a direct flip from +2 to -1 is not an improvement and stays silent
	ok, _ = g.ShouldNotify(ctx, "b", 2)
	assert.True(t, ok)
	ok, _ = g.ShouldNotify(ctx, "b", -1)
	assert.False(t, ok)
	ok, _ = g.ShouldNotify(ctx, "b", -2)
	assert.False(t, ok)
}

func TestRatchetTable(t *testing.T) {
	assert.True(t, Ratchet(0, 1))
	assert.True(t, Ratchet(0, -1))
	assert.True(t, Ratchet(1, 2))
	assert.True(t, Ratchet(-1, -2))
	assert.False(t, Ratchet(2, -1))
	assert.False(t, Ratchet(-2, 1))
	assert.False(t, Ratchet(2, 2))
}

func TestGateZeroSkipsRedundantWrite(t *testing.T) {
	store := newMapStore()
	g := NewGate(store)
	ok, err := g.ShouldNotify(context.Background(), "k", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.writes)
}

func TestGateStoreErrorWritesNothing(t *testing.T) {
	store := newMapStore()
	store.err = errors.New("connection refused")
	g := NewGate(store)

	ok, err := g.ShouldNotify(context.Background(), "k", 2)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.writes)
}

func TestGateSerializesPerKey(t *testing.T) {
	store := newMapStore()
	g := NewGate(store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	notified := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := g.ShouldNotify(context.Background(), "k", 1)
			if err == nil && ok {
				mu.Lock()
				notified++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, notified)
}
