package signals

import "MarketScreener/internal/domain/models"

const NameMACD = "MACD"

type MACDConfig struct {
	MA         string
	BullishSet []models.TimingCode
	BearishSet []models.TimingCode
}

func DefaultMACDConfig() MACDConfig {
	return MACDConfig{
		MA:         "WMA150",
		BullishSet: []models.TimingCode{1, 4},
		BearishSet: []models.TimingCode{-1, -4},
	}
}

// MACD scores a retracement to the average while MACD is still below (above) zero.
type MACD struct {
	cfg MACDConfig
}

func NewMACD(cfg MACDConfig) *MACD {
	return &MACD{cfg: cfg}
}

func (m *MACD) Name() string { return NameMACD }

func (m *MACD) Depth() int { return 1 }

func (m *MACD) Evaluate(in Input) (int, error) {
	bull := in.Timing.Reference.In(m.cfg.BullishSet...)
	bear := in.Timing.Reference.In(m.cfg.BearishSet...)
	if !bull && !bear {
		return 0, nil
	}

	r := read(in.Series)
	b := r.bar(0)
	ma := r.ma(m.cfg.MA, 0)
	x := r.macd(0)
	if r.err != nil {
		return 0, r.err
	}

	if bull {
		if b.Low > ma || !(x.Signal < 0 || x.Line < 0) {
			return 0, nil
		}
		if x.Histogram < 0 {
			return 1, nil
		}
		return 2, nil
	}
	if b.High < ma || !(x.Signal > 0 || x.Line > 0) {
		return 0, nil
	}
	if x.Histogram > 0 {
		return -1, nil
	}
	return -2, nil
}
