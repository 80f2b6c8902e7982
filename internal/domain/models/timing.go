package models

import "time"

// TimeFrame is a bar resolution label as used by the trading platform.
type TimeFrame string

const (
	M1  TimeFrame = "M1"
	M5  TimeFrame = "M5"
	M15 TimeFrame = "M15"
	H1  TimeFrame = "H1"
	H4  TimeFrame = "H4"
	D1  TimeFrame = "D1"
	D2  TimeFrame = "D2"
	W1  TimeFrame = "W1"
	MN1 TimeFrame = "MN1"
)

// Duration returns the nominal length of one bar. MN1 is approximated to 30 days.
func (tf TimeFrame) Duration() time.Duration {
	switch tf {
	case M1:
		return time.Minute
	case M5:
		return 5 * time.Minute
	case M15:
		return 15 * time.Minute
	case H1:
		return time.Hour
	case H4:
		return 4 * time.Hour
	case D1:
		return 24 * time.Hour
	case D2:
		return 48 * time.Hour
	case W1:
		return 7 * 24 * time.Hour
	case MN1:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

func (tf TimeFrame) String() string { return string(tf) }

// TimingCode is the discrete trend/momentum classification of one timeframe.
// Sign is the trend direction, magnitude ranks confirmation from 1 (strongest) to 4.
type TimingCode int

// In reports whether c is one of set.
func (c TimingCode) In(set ...TimingCode) bool {
	for _, v := range set {
		if v == c {
			return true
		}
	}
	return false
}

// Valid reports whether c belongs to {-4..-1, 1..4}.
func (c TimingCode) Valid() bool {
	return c != 0 && c >= -4 && c <= 4
}

// Timing maps every tracked timeframe (and its reference timeframe) to a code.
type Timing map[TimeFrame]TimingCode

// Clone returns an independent copy.
func (t Timing) Clone() Timing {
	if t == nil {
		return nil
	}
	out := make(Timing, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// MarketTiming is the (reference, local) pair an evaluator receives for one timeframe.
type MarketTiming struct {
	Reference TimingCode `json:"reference"`
	Local     TimingCode `json:"local"`
}
