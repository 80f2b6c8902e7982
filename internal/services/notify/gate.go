// Package notify decides when a signal deserves an alert and delivers it.
package notify

import (
	"context"
	"fmt"
	"sync"

	"MarketScreener/internal/domain/models"
	"MarketScreener/internal/domain/repository"
)

// Key builds the store key "{symbol}-{tf}-{name}-{channel}".
func Key(symbol string, tf models.TimeFrame, name string, ch models.Channel) string {
	return fmt.Sprintf("%s-%s-%s-%s", symbol, tf, name, ch)
}

// Ratchet reports whether v is a strict improvement in magnitude over the last
// notified value c, in c's direction or starting from zero.
//
// A direct flip between non-zero values of opposite sign is not an improvement;
// the key has to pass through zero first.
func Ratchet(c, v int) bool {
	return (v > c && c >= 0) || (v < c && c <= 0)
}

// Gate holds the ratchet state for every (symbol, tf, signal, channel) key.
type Gate struct {
	store repository.NotificationStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGate(store repository.NotificationStore) *Gate {
	return &Gate{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

func (g *Gate) lock(key string) func() {
	g.mu.Lock()
	l, ok := g.locks[key]
	if !ok {
		l = &sync.Mutex{}
		g.locks[key] = l
	}
	g.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// ShouldNotify runs one read-modify-write of the ratchet for key.
//
// v == 0 resets the key and never notifies. On a store error nothing is written
// and false is returned with the error.
func (g *Gate) ShouldNotify(ctx context.Context, key string, v int) (bool, error) {
	unlock := g.lock(key)
	defer unlock()

	c, err := g.store.GetInt(ctx, key, 0)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}

	if v == 0 {
		if c == 0 {
			return false, nil
		}
		if err := g.store.SetInt(ctx, key, 0); err != nil {
			return false, fmt.Errorf("reset %s: %w", key, err)
		}
		return false, nil
	}

	if !Ratchet(c, v) {
		return false, nil
	}
	if err := g.store.SetInt(ctx, key, v); err != nil {
		return false, fmt.Errorf("write %s: %w", key, err)
	}
	return true, nil
}
