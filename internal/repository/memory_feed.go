package repository

import (
	"context"
	"fmt"
	"sync"

	"MarketScreener/internal/domain/models"
)

// MemoryFeed is an in-process IndicatorFeed. It serves whatever series were
// last stored for a (symbol, timeframe) pair.
type MemoryFeed struct {
	mu     sync.RWMutex
	series map[string]*models.Series
	errs   map[string]error
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{
		series: make(map[string]*models.Series),
		errs:   make(map[string]error),
	}
}

func feedKey(symbol string, tf models.TimeFrame) string {
	return symbol + "|" + string(tf)
}

// Put stores s under its own symbol and timeframe.
func (f *MemoryFeed) Put(s *models.Series) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := feedKey(s.Symbol, s.TimeFrame)
	f.series[k] = s
	delete(f.errs, k)
}

// Fail makes every read of (symbol, tf) return err until the next Put.
func (f *MemoryFeed) Fail(symbol string, tf models.TimeFrame, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[feedKey(symbol, tf)] = err
}

func (f *MemoryFeed) Series(_ context.Context, symbol string, tf models.TimeFrame, depth int) (*models.Series, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	k := feedKey(symbol, tf)
	if err, ok := f.errs[k]; ok {
		return nil, err
	}
	s, ok := f.series[k]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", symbol, tf, models.ErrInsufficientData)
	}
	return trimSeries(s, depth), nil
}

// trimSeries returns a copy holding at most depth bars.
func trimSeries(s *models.Series, depth int) *models.Series {
	n := len(s.Bars)
	if depth > 0 && depth < n {
		n = depth
	}
	out := &models.Series{
		Symbol:    s.Symbol,
		TimeFrame: s.TimeFrame,
		Bars:      append([]models.Bar(nil), s.Bars[:n]...),
		MACD:      head(s.MACD, n),
		Stoch:     head(s.Stoch, n),
		ATR:       head(s.ATR, n),
		MA:        make(map[string][]float64, len(s.MA)),
	}
	for k, v := range s.MA {
		out.MA[k] = head(v, n)
	}
	return out
}

func head[T any](v []T, n int) []T {
	if len(v) > n {
		v = v[:n]
	}
	return append([]T(nil), v...)
}
