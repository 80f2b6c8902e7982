package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientData is returned when a series does not reach the requested shift.
var ErrInsufficientData = errors.New("insufficient data")

// Bar is one sampling interval. Closed is false for the bar still forming.
type Bar struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Closed bool      `json:"closed"`
}

type MACDPoint struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"hist"`
}

type StochPoint struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// Series holds bars and precomputed indicator outputs for one (symbol, timeframe),
// newest first. Every indicator slice is index-aligned with Bars.
type Series struct {
	Symbol    string               `json:"symbol"`
	TimeFrame TimeFrame            `json:"tf"`
	Bars      []Bar                `json:"bars"`
	MA        map[string][]float64 `json:"ma"`
	MACD      []MACDPoint          `json:"macd"`
	Stoch     []StochPoint         `json:"stoch"`
	ATR       []float64            `json:"atr"`
}

// Closed returns a view whose shift 0 is the last completed bar.
// A leading in-progress bar is dropped together with its indicator values.
func (s *Series) Closed() *Series {
	if s == nil || len(s.Bars) == 0 || s.Bars[0].Closed {
		return s
	}
	out := &Series{
		Symbol:    s.Symbol,
		TimeFrame: s.TimeFrame,
		Bars:      s.Bars[1:],
		MACD:      dropFirst(s.MACD),
		Stoch:     dropFirst(s.Stoch),
		ATR:       dropFirst(s.ATR),
	}
	if s.MA != nil {
		out.MA = make(map[string][]float64, len(s.MA))
		for k, v := range s.MA {
			out.MA[k] = dropFirst(v)
		}
	}
	return out
}

func dropFirst[T any](v []T) []T {
	if len(v) == 0 {
		return v
	}
	return v[1:]
}

// Len returns the number of bars.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

func (s *Series) Bar(shift int) (Bar, error) {
	if s == nil || shift < 0 || shift >= len(s.Bars) {
		return Bar{}, fmt.Errorf("bar shift %d: %w", shift, ErrInsufficientData)
	}
	return s.Bars[shift], nil
}

// MAValue returns the named moving average (e.g. "EMA50") at shift.
func (s *Series) MAValue(name string, shift int) (float64, error) {
	if s == nil {
		return 0, fmt.Errorf("%s shift %d: %w", name, shift, ErrInsufficientData)
	}
	v, ok := s.MA[name]
	if !ok {
		return 0, fmt.Errorf("moving average %s not supplied", name)
	}
	if shift < 0 || shift >= len(v) {
		return 0, fmt.Errorf("%s shift %d: %w", name, shift, ErrInsufficientData)
	}
	return v[shift], nil
}

func (s *Series) MACDAt(shift int) (MACDPoint, error) {
	if s == nil || shift < 0 || shift >= len(s.MACD) {
		return MACDPoint{}, fmt.Errorf("macd shift %d: %w", shift, ErrInsufficientData)
	}
	return s.MACD[shift], nil
}

func (s *Series) StochAt(shift int) (StochPoint, error) {
	if s == nil || shift < 0 || shift >= len(s.Stoch) {
		return StochPoint{}, fmt.Errorf("stochastic shift %d: %w", shift, ErrInsufficientData)
	}
	return s.Stoch[shift], nil
}

func (s *Series) ATRAt(shift int) (float64, error) {
	if s == nil || shift < 0 || shift >= len(s.ATR) {
		return 0, fmt.Errorf("atr shift %d: %w", shift, ErrInsufficientData)
	}
	return s.ATR[shift], nil
}
