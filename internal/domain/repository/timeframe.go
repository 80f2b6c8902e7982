package repository

import (
	"errors"
	"fmt"
	"strings"

	"MarketScreener/internal/domain/models"
)

// ErrUnsupportedTimeframe is returned by every timeframe lookup that has no mapping.
var ErrUnsupportedTimeframe = errors.New("timeframe not supported")

// IsValidTimeframe returns true if tf can be evaluated (it has a reference timeframe).
func IsValidTimeframe(tf models.TimeFrame) bool {
	_, err := ReferenceTimeFrame(tf)
	return err == nil
}

// ReferenceTimeFrame returns the coarser timeframe used to confirm signals on tf.
func ReferenceTimeFrame(tf models.TimeFrame) (models.TimeFrame, error) {
	switch tf {
	case models.M1, models.M5:
		return models.H1, nil
	case models.M15:
		return models.H4, nil
	case models.H1:
		return models.D1, nil
	case models.H4:
		return models.D2, nil
	case models.D1:
		return models.W1, nil
	case models.W1:
		return models.MN1, nil
	default:
		return "", fmt.Errorf("reference of %q: %w", tf, ErrUnsupportedTimeframe)
	}
}

// ParseTimeFrame parses one evaluation timeframe label.
func ParseTimeFrame(s string) (models.TimeFrame, error) {
	switch tf := models.TimeFrame(strings.ToUpper(strings.TrimSpace(s))); tf {
	case models.M1, models.M5, models.M15, models.H1, models.H4, models.D1:
		return tf, nil
	default:
		return "", fmt.Errorf("parse %q: %w", s, ErrUnsupportedTimeframe)
	}
}

// ParseTimeFrames parses a comma separated list such as "H1,H4,D1". Empty items are skipped.
func ParseTimeFrames(s string) ([]models.TimeFrame, error) {
	parts := strings.Split(s, ",")
	out := make([]models.TimeFrame, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		tf, err := ParseTimeFrame(p)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, nil
}
