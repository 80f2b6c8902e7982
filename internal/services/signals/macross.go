package signals

import (
	"fmt"

	"MarketScreener/internal/domain/models"
)

const NameMACross = "MMX"

type MACrossConfig struct {
	FastMA  string
	SlowMA  string
	Periods int
}

func DefaultMACrossConfig() MACrossConfig {
	return MACrossConfig{FastMA: "EMA50", SlowMA: "WMA200", Periods: 24}
}

// MACross reports the most recent crossover of the fast and slow averages
// inside the window. A newer cross always hides an older opposite one.
type MACross struct {
	cfg MACrossConfig
}

func NewMACross(cfg MACrossConfig) *MACross {
	if cfg.Periods < 2 {
		cfg.Periods = 2
	}
	return &MACross{cfg: cfg}
}

func (m *MACross) Name() string { return NameMACross }

func (m *MACross) Depth() int { return m.cfg.Periods }

func (m *MACross) Evaluate(in Input) (int, error) {
	r := read(in.Series)
	available := min(r.maLen(m.cfg.FastMA), r.maLen(m.cfg.SlowMA))
	if available < 2 {
		return 0, fmt.Errorf("%s/%s: %w", m.cfg.FastMA, m.cfg.SlowMA, models.ErrInsufficientData)
	}

	for lag := 0; lag < m.cfg.Periods-1 && lag+1 < available; lag++ {
		f0, s0 := r.ma(m.cfg.FastMA, lag), r.ma(m.cfg.SlowMA, lag)
		f1, s1 := r.ma(m.cfg.FastMA, lag+1), r.ma(m.cfg.SlowMA, lag+1)
		if r.err != nil {
			return 0, r.err
		}
		if crossedAbove(f0, s0, f1, s1) {
			return 1, nil
		}
		if crossedBelow(f0, s0, f1, s1) {
			return -1, nil
		}
	}
	return 0, nil
}
