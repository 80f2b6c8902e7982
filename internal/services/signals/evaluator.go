// Package signals holds the rule-based evaluators run by the engine each cycle.
//
// Every evaluator is pure: it reads the (reference, local) timing and a series
// whose shift 0 is the last completed bar, and returns a signed score. Zero
// means no signal.
package signals

import (
	"fmt"

	"MarketScreener/internal/domain/models"
)

// Input is everything an evaluator may look at for one (symbol, timeframe).
type Input struct {
	Symbol    string
	TimeFrame models.TimeFrame
	Timing    models.MarketTiming
	Series    *models.Series
}

// Evaluator is a named scoring rule.
type Evaluator interface {
	Name() string
	// Depth is the number of closed bars the rule reads.
	Depth() int
	Evaluate(in Input) (int, error)
}

// Binding runs one evaluator on a list of timeframes.
type Binding struct {
	Evaluator  Evaluator
	TimeFrames []models.TimeFrame
}

// Run evaluates e and converts a panic into an error so one bad key cannot abort a cycle.
func Run(e Evaluator, in Input) (v int, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = 0
			err = fmt.Errorf("%s %s %s: panic: %v", e.Name(), in.Symbol, in.TimeFrame, r)
		}
	}()
	v, err = e.Evaluate(in)
	if err != nil {
		return 0, fmt.Errorf("%s %s %s: %w", e.Name(), in.Symbol, in.TimeFrame, err)
	}
	return v, nil
}

// reader collects the first lookup error so rules can read values in sequence.
type reader struct {
	s   *models.Series
	err error
}

func read(s *models.Series) *reader {
	return &reader{s: s.Closed()}
}

func (r *reader) bar(shift int) models.Bar {
	if r.err != nil {
		return models.Bar{}
	}
	b, err := r.s.Bar(shift)
	r.err = err
	return b
}

func (r *reader) ma(name string, shift int) float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.s.MAValue(name, shift)
	r.err = err
	return v
}

func (r *reader) macd(shift int) models.MACDPoint {
	if r.err != nil {
		return models.MACDPoint{}
	}
	v, err := r.s.MACDAt(shift)
	r.err = err
	return v
}

func (r *reader) stoch(shift int) models.StochPoint {
	if r.err != nil {
		return models.StochPoint{}
	}
	v, err := r.s.StochAt(shift)
	r.err = err
	return v
}

// maLen is the number of values available for a moving average.
func (r *reader) maLen(name string) int {
	if r.s == nil {
		return 0
	}
	return len(r.s.MA[name])
}

func crossedAbove(a0, b0, a1, b1 float64) bool { return a0 > b0 && a1 <= b1 }

func crossedBelow(a0, b0, a1, b1 float64) bool { return a0 < b0 && a1 >= b1 }
