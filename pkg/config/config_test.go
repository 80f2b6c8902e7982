package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"MarketScreener/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
environment: test
engine:
  symbols: [EURUSD, GBPUSD]
  feed: memory
  timeframes: "H1,D1"
signals:
  pb:
    enabled: true
    timeframes: "H1,H4,D1"
  mmx:
    enabled: true
    timeframes: "M5,H1"
`

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 10*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, "0.0.0.0", c.Server.Host)
	assert.Equal(t, []string{"*"}, c.Server.CORSOrigins)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "WMA150", c.Engine.TrendMA)
	assert.Equal(t, 4, c.Engine.Workers)
	assert.Equal(t, 24, c.Signals.MMXPeriods)
	assert.Equal(t, "screener", c.Redis.Prefix)
	assert.Equal(t, "market.bars", c.Kafka.BarsTopic)
	assert.Equal(t, []models.TimeFrame{models.H1, models.D1}, c.TimeFrames())
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	t.Setenv("SYMBOLS", "USDJPY, AUDUSD,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("ALERT_WEBHOOK_URL", "http://relay/mail")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"USDJPY", "AUDUSD"}, c.Engine.Symbols)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, "redis", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "http://relay/mail", c.Alerts.Email.WebhookURL)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestApplyEnv_BadRedisAddr(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	env := map[string]string{"REDIS_ADDR": "no-port"}
	assert.Error(t, c.ApplyEnv(func(k string) string { return env[k] }))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no symbols", func(c *Config) { c.Engine.Symbols = nil }},
		{"unknown feed", func(c *Config) { c.Engine.Feed = "csv" }},
		{"clickhouse feed without host", func(c *Config) { c.Engine.Feed = "clickhouse" }},
		{"unsupported tracked timeframe", func(c *Config) { c.Engine.TimeFrames = "H1,W1" }},
		{"unsupported evaluator timeframe", func(c *Config) { c.Signals.PB.TimeFrames = "H1,H2" }},
		{"enabled evaluator without timeframes", func(c *Config) { c.Signals.MMX.TimeFrames = "" }},
		{"short mmx window", func(c *Config) { c.Signals.MMXPeriods = 1 }},
		{"zero timing code in set", func(c *Config) { c.Signals.PB.BullishSet = []models.TimingCode{1, 0} }},
		{"timing code out of range", func(c *Config) { c.Signals.MACD.BearishSet = []models.TimingCode{-5} }},
		{"zero vcn lookback", func(c *Config) { c.Signals.VCN.Lookback = 0 }},
		{"inverted stochastic bounds", func(c *Config) { c.Signals.ACC.Oversold = 80 }},
		{"email without webhook", func(c *Config) { c.Alerts.Email.Enabled = true }},
		{"sound without redis", func(c *Config) { c.Alerts.Sound.Enabled = true }},
		{"kafka publish without brokers", func(c *Config) { c.Publish.KafkaTopic = "screener.state" }},
		{"stream without url", func(c *Config) { c.Stream.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Parse([]byte(minimalYAML))
			require.NoError(t, err)
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidate_DisabledEvaluatorIgnored(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	c.Signals.ACC.EvaluatorConfig = EvaluatorConfig{Enabled: false, TimeFrames: "bogus"}
	assert.NoError(t, c.Validate())
}

func TestParse_EvaluatorParameters(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "EMA50", c.Signals.PB.FastMA)
	assert.Equal(t, "WMA200", c.Signals.PB.SlowMA)
	assert.Equal(t, 2, c.Signals.PB.TrendBars)
	assert.Equal(t, []models.TimingCode{1, 4, -2, -3}, c.Signals.PB.BullishSet)
	assert.Equal(t, []models.TimingCode{-1, -4, 2, 3}, c.Signals.PB.BearishSet)
	assert.Equal(t, 3, c.Signals.VCN.Lookback)
	assert.False(t, c.Signals.VCN.IgnoreHistogram)
	assert.Equal(t, 70.0, c.Signals.ACC.Overbought)
	assert.Equal(t, "WMA150", c.Signals.MACD.MA)

	c, err = Parse([]byte(minimalYAML + `
  macd:
    enabled: true
    timeframes: "H1"
    ma: WMA100
    bullish_set: [1]
    bearish_set: [-1]
`))
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.True(t, c.Signals.MACD.Enabled)
	assert.Equal(t, "WMA100", c.Signals.MACD.MA)
	assert.Equal(t, []models.TimingCode{1}, c.Signals.MACD.BullishSet)
	assert.Equal(t, []models.TimingCode{-1}, c.Signals.MACD.BearishSet)
}
