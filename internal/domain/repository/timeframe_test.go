package repository

import (
	"testing"

	"MarketScreener/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceTimeFrameIsTotal(t *testing.T) {
	want := map[models.TimeFrame]models.TimeFrame{
		models.M1:  models.H1,
		models.M5:  models.H1,
		models.M15: models.H4,
		models.H1:  models.D1,
		models.H4:  models.D2,
		models.D1:  models.W1,
		models.W1:  models.MN1,
	}
	for tf, ref := range want {
		got, err := ReferenceTimeFrame(tf)
		require.NoError(t, err, tf)
		assert.Equal(t, ref, got, tf)
	}
}

func TestReferenceTimeFrameUnsupported(t *testing.T) {
	for _, tf := range []models.TimeFrame{models.MN1, models.D2, "M30", ""} {
		_, err := ReferenceTimeFrame(tf)
		assert.ErrorIs(t, err, ErrUnsupportedTimeframe, tf)
	}
}

func TestParseTimeFrames(t *testing.T) {
	got, err := ParseTimeFrames("H1, h4,D1,")
	require.NoError(t, err)
	assert.Equal(t, []models.TimeFrame{models.H1, models.H4, models.D1}, got)

	_, err = ParseTimeFrames("H1,M30")
	assert.ErrorIs(t, err, ErrUnsupportedTimeframe)
}
