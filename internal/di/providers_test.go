package di

import (
	"testing"

	"MarketScreener/internal/domain/models"
	"MarketScreener/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bindingsYAML = `
environment: test
engine:
  symbols: [EURUSD]
  feed: memory
  timeframes: "H1,D1"
signals:
  mmx_periods: 10
  pb:
    enabled: true
    timeframes: "H1,H4"
    trend_bars: 5
  vcn:
    enabled: true
    timeframes: "M15"
    lookback: 6
  mmx:
    enabled: true
    timeframes: "H1"
    fast_ma: EMA20
  acc:
    enabled: false
    timeframes: "H1"
`

func TestProvideBindings_UsesConfiguredParameters(t *testing.T) {
	cfg, err := config.Parse([]byte(bindingsYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	bindings, err := ProvideBindings(cfg)
	require.NoError(t, err)
	require.Len(t, bindings, 3)

	depth := map[string]int{}
	for _, b := range bindings {
		depth[b.Evaluator.Name()] = b.Evaluator.Depth()
	}
	assert.Equal(t, map[string]int{"PB": 5, "VCN": 7, "MMX": 10}, depth)
	assert.Equal(t, []models.TimeFrame{models.H1, models.H4}, bindings[0].TimeFrames)
	assert.Equal(t, []models.TimeFrame{models.M15}, bindings[1].TimeFrames)
}

func TestProvideBindings_RejectsBadTimeFrames(t *testing.T) {
	cfg, err := config.Parse([]byte(bindingsYAML))
	require.NoError(t, err)
	cfg.Signals.VCN.TimeFrames = "H2"

	_, err = ProvideBindings(cfg)
	assert.ErrorContains(t, err, "VCN timeframes")
}
