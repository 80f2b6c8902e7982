package signals

import "MarketScreener/internal/domain/models"

const NameAccumulation = "ACC"

type AccumulationConfig struct {
	MA         string
	Oversold   float64
	Overbought float64
	BullishSet []models.TimingCode
	BearishSet []models.TimingCode
}

func DefaultAccumulationConfig() AccumulationConfig {
	return AccumulationConfig{
		MA:         "WMA50",
		Oversold:   30,
		Overbought: 70,
		BullishSet: []models.TimingCode{1, 4},
		BearishSet: []models.TimingCode{-1, -4},
	}
}

// Accumulation looks for stochastic exhaustion while price tests the average
// against an impulsive reference timing.
type Accumulation struct {
	cfg AccumulationConfig
}

func NewAccumulation(cfg AccumulationConfig) *Accumulation {
	return &Accumulation{cfg: cfg}
}

func (a *Accumulation) Name() string { return NameAccumulation }

func (a *Accumulation) Depth() int { return 3 }

func (a *Accumulation) Evaluate(in Input) (int, error) {
	bull := in.Timing.Reference.In(a.cfg.BullishSet...)
	bear := in.Timing.Reference.In(a.cfg.BearishSet...)
	if !bull && !bear {
		return 0, nil
	}

	r := read(in.Series)
	b0, b1 := r.bar(0), r.bar(1)
	ma0, ma1 := r.ma(a.cfg.MA, 0), r.ma(a.cfg.MA, 1)
	k0, k1, k2 := r.stoch(0), r.stoch(1), r.stoch(2)
	if r.err != nil {
		return 0, r.err
	}

	if bull {
		if b0.Low <= ma0 && k0.K < a.cfg.Oversold && k0.K < k0.D {
			return 1, nil
		}
		crossed := crossedAbove(k0.K, k0.D, k1.K, k1.D) || crossedAbove(k1.K, k1.D, k2.K, k2.D)
		if (b0.Low <= ma0 || b1.Low <= ma1) && (k1.K < a.cfg.Oversold || k0.K <= a.cfg.Oversold) && crossed {
			return 2, nil
		}
		return 0, nil
	}

	if b0.High >= ma0 && k0.K > a.cfg.Overbought && k0.K > k0.D {
		return -1, nil
	}
	crossed := crossedBelow(k0.K, k0.D, k1.K, k1.D) || crossedBelow(k1.K, k1.D, k2.K, k2.D)
	if (b0.High >= ma0 || b1.High >= ma1) && (k1.K > a.cfg.Overbought || k0.K >= a.cfg.Overbought) && crossed {
		return -2, nil
	}
	return 0, nil
}
