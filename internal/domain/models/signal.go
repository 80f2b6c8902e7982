package models

import (
	"fmt"
	"time"
)

// Signal is the latest non-zero result of one evaluator on one timeframe.
type Signal struct {
	Name      string       `json:"name"`
	TimeFrame TimeFrame    `json:"timeframe"`
	Value     int          `json:"value"`
	Timing    MarketTiming `json:"timing"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Key identifies the signal inside its asset.
func (s Signal) Key() string {
	return SignalKey(s.Name, s.TimeFrame)
}

// Direction returns the trade side implied by the value.
func (s Signal) Direction() string {
	if s.Value > 0 {
		return "Buy"
	}
	return "Sell"
}

// SignalKey builds the "NAME-TF" key.
func SignalKey(name string, tf TimeFrame) string {
	return fmt.Sprintf("%s-%s", name, tf)
}

// Change describes what an upsert did to the aggregate.
type Change int

const (
	ChangeNone Change = iota
	ChangeInserted
	ChangeUpdated
	ChangeRefreshed
	ChangeEvicted
)

func (c Change) String() string {
	switch c {
	case ChangeInserted:
		return "inserted"
	case ChangeUpdated:
		return "updated"
	case ChangeRefreshed:
		return "refreshed"
	case ChangeEvicted:
		return "evicted"
	default:
		return "none"
	}
}

// SignalEvent records a transition of one signal, used for history and metrics.
type SignalEvent struct {
	Symbol    string
	Name      string
	TimeFrame TimeFrame
	Value     int
	Previous  int
	Change    Change
	Timing    MarketTiming
	At        time.Time
}
