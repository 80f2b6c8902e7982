package signals

import "MarketScreener/internal/domain/models"

const NamePullback = "PB"

type PullbackConfig struct {
	FastMA    string
	SlowMA    string
	TrendBars int

	// Reference codes treated as impulsive for each direction.
	BullishSet []models.TimingCode
	BearishSet []models.TimingCode
}

func DefaultPullbackConfig() PullbackConfig {
	return PullbackConfig{
		FastMA:     "EMA50",
		SlowMA:     "WMA200",
		TrendBars:  2,
		BullishSet: []models.TimingCode{1, 4, -2, -3},
		BearishSet: []models.TimingCode{-1, -4, 2, 3},
	}
}

// Pullback fires when the averages hold a trend, the reference timing is
// impulsive and MACD sits on the far side of zero with the histogram turning back.
type Pullback struct {
	cfg PullbackConfig
}

func NewPullback(cfg PullbackConfig) *Pullback {
	if cfg.TrendBars < 1 {
		cfg.TrendBars = 1
	}
	return &Pullback{cfg: cfg}
}

func (p *Pullback) Name() string { return NamePullback }

func (p *Pullback) Depth() int {
	if p.cfg.TrendBars > 2 {
		return p.cfg.TrendBars
	}
	return 2
}

func (p *Pullback) Evaluate(in Input) (int, error) {
	bull := in.Timing.Reference.In(p.cfg.BullishSet...)
	bear := in.Timing.Reference.In(p.cfg.BearishSet...)
	if !bull && !bear {
		return 0, nil
	}

	r := read(in.Series)
	above, below := true, true
	for i := 0; i < p.cfg.TrendBars; i++ {
		fast, slow := r.ma(p.cfg.FastMA, i), r.ma(p.cfg.SlowMA, i)
		above = above && fast > slow
		below = below && fast < slow
	}
	m0, m1 := r.macd(0), r.macd(1)
	if r.err != nil {
		return 0, r.err
	}

	if bull && above && m0.Line < 0 && m0.Signal < 0 && m0.Histogram >= 0 {
		if m1.Histogram < 0 {
			return 2, nil
		}
		return 1, nil
	}
	if bear && below && m0.Line > 0 && m0.Signal > 0 && m0.Histogram <= 0 {
		if m1.Histogram > 0 {
			return -2, nil
		}
		return -1, nil
	}
	return 0, nil
}
