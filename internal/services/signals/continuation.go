package signals

import "MarketScreener/internal/domain/models"

const NameContinuation = "VCN"

type ContinuationConfig struct {
	FastMA           string
	TrendMA          string
	Lookback         int
	BullishSet       []models.TimingCode
	BearishSet       []models.TimingCode
	RequireHistogram bool
}

func DefaultContinuationConfig() ContinuationConfig {
	return ContinuationConfig{
		FastMA:           "EMA8",
		TrendMA:          "WMA50",
		Lookback:         3,
		BullishSet:       []models.TimingCode{1, 4},
		BearishSet:       []models.TimingCode{-1, -4},
		RequireHistogram: true,
	}
}

// Continuation scores price riding the fast average in an aligned trend:
// 2 when price held off the average for Lookback bars and touched it on the
// last closed bar, 1 while it is still holding.
type Continuation struct {
	cfg ContinuationConfig
}

func NewContinuation(cfg ContinuationConfig) *Continuation {
	if cfg.Lookback < 1 {
		cfg.Lookback = 1
	}
	return &Continuation{cfg: cfg}
}

func (c *Continuation) Name() string { return NameContinuation }

func (c *Continuation) Depth() int { return c.cfg.Lookback + 1 }

func (c *Continuation) Evaluate(in Input) (int, error) {
	bull := in.Timing.Reference.In(c.cfg.BullishSet...) && in.Timing.Local.In(c.cfg.BullishSet...)
	bear := in.Timing.Reference.In(c.cfg.BearishSet...) && in.Timing.Local.In(c.cfg.BearishSet...)
	if !bull && !bear {
		return 0, nil
	}

	n := c.cfg.Lookback + 1
	r := read(in.Series)
	bars := make([]models.Bar, n)
	fast := make([]float64, n)
	hist := make([]float64, n)
	for i := 0; i < n; i++ {
		bars[i] = r.bar(i)
		fast[i] = r.ma(c.cfg.FastMA, i)
		hist[i] = r.macd(i).Histogram
	}
	trend := r.ma(c.cfg.TrendMA, 0)
	if r.err != nil {
		return 0, r.err
	}

	switch {
	case bull && fast[0] > trend:
		if c.cfg.RequireHistogram && !allSigned(hist, 1) {
			return 0, nil
		}
		held := true
		for i := 1; i < n; i++ {
			held = held && bars[i].Low > fast[i]
		}
		if held && bars[0].Low <= fast[0] {
			return 2, nil
		}
		if bars[0].Low > fast[0] {
			return 1, nil
		}
	case bear && fast[0] < trend:
		if c.cfg.RequireHistogram && !allSigned(hist, -1) {
			return 0, nil
		}
		held := true
		for i := 1; i < n; i++ {
			held = held && bars[i].High < fast[i]
		}
		if held && bars[0].High >= fast[0] {
			return -2, nil
		}
		if bars[0].High < fast[0] {
			return -1, nil
		}
	}
	return 0, nil
}

// allSigned reports whether every value is strictly on the side given by sign.
func allSigned(v []float64, sign int) bool {
	for _, x := range v {
		if sign > 0 && x <= 0 || sign < 0 && x >= 0 {
			return false
		}
	}
	return true
}
