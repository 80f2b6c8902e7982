// Package timing derives discrete trend/momentum codes from indicator outputs.
package timing

import (
	"fmt"

	"MarketScreener/internal/domain/models"
	domrepo "MarketScreener/internal/domain/repository"
)

// Classify maps trend direction and MACD histogram/signal signs to a TimingCode.
func Classify(trendUp bool, hist, signal float64) models.TimingCode {
	if trendUp {
		switch {
		case hist > 0 && signal > 0:
			return 1
		case hist > 0 && signal < 0:
			return 4
		case hist <= 0 && signal >= 0:
			return 2
		default:
			return 3
		}
	}
	switch {
	case hist < 0 && signal < 0:
		return -1
	case hist < 0 && signal > 0:
		return -4
	case hist >= 0 && signal <= 0:
		return -2
	default:
		return -3
	}
}

// ClassifySimple is the two-state variant driven by the histogram sign only.
func ClassifySimple(trendUp bool, hist float64) models.TimingCode {
	switch {
	case trendUp && hist > 0:
		return 1
	case trendUp:
		return 2
	case hist <= 0:
		return -1
	default:
		return -2
	}
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithSimple switches the classifier to the two-state variant.
func WithSimple(simple bool) Option {
	return func(c *Classifier) { c.simple = simple }
}

// Classifier computes codes from series using a configurable trend average.
type Classifier struct {
	trendMA string
	simple  bool
}

func NewClassifier(trendMA string, opts ...Option) *Classifier {
	c := &Classifier{trendMA: trendMA}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Code classifies the last closed bar of s.
func (c *Classifier) Code(s *models.Series) (models.TimingCode, error) {
	closed := s.Closed()
	bar, err := closed.Bar(0)
	if err != nil {
		return 0, err
	}
	ma, err := closed.MAValue(c.trendMA, 0)
	if err != nil {
		return 0, err
	}
	macd, err := closed.MACDAt(0)
	if err != nil {
		return 0, err
	}
	up := ma < bar.Close
	if c.simple {
		return ClassifySimple(up, macd.Histogram), nil
	}
	return Classify(up, macd.Histogram, macd.Signal), nil
}

// ClassifyAll returns a complete Timing for the tracked timeframes and their
// reference timeframes. It fails when any required series is missing.
func (c *Classifier) ClassifyAll(series map[models.TimeFrame]*models.Series, tracked []models.TimeFrame) (models.Timing, error) {
	required, err := RequiredTimeFrames(tracked)
	if err != nil {
		return nil, err
	}
	out := make(models.Timing, len(required))
	for _, tf := range required {
		s, ok := series[tf]
		if !ok || s == nil {
			return nil, fmt.Errorf("timing %s: series missing: %w", tf, models.ErrInsufficientData)
		}
		code, err := c.Code(s)
		if err != nil {
			return nil, fmt.Errorf("timing %s: %w", tf, err)
		}
		out[tf] = code
	}
	return out, nil
}

// RequiredTimeFrames returns tracked plus their reference timeframes, deduplicated in first-seen order.
func RequiredTimeFrames(tracked []models.TimeFrame) ([]models.TimeFrame, error) {
	seen := make(map[models.TimeFrame]struct{}, len(tracked)*2)
	out := make([]models.TimeFrame, 0, len(tracked)*2)
	add := func(tf models.TimeFrame) {
		if _, ok := seen[tf]; ok {
			return
		}
		seen[tf] = struct{}{}
		out = append(out, tf)
	}
	for _, tf := range tracked {
		ref, err := domrepo.ReferenceTimeFrame(tf)
		if err != nil {
			return nil, err
		}
		add(tf)
		add(ref)
	}
	return out, nil
}

// Market extracts the (reference, local) pair for tf.
func Market(t models.Timing, tf models.TimeFrame) (models.MarketTiming, error) {
	ref, err := domrepo.ReferenceTimeFrame(tf)
	if err != nil {
		return models.MarketTiming{}, err
	}
	local, ok := t[tf]
	if !ok {
		return models.MarketTiming{}, fmt.Errorf("timing for %s not computed", tf)
	}
	reference, ok := t[ref]
	if !ok {
		return models.MarketTiming{}, fmt.Errorf("reference timing for %s (%s) not computed", tf, ref)
	}
	return models.MarketTiming{Reference: reference, Local: local}, nil
}
