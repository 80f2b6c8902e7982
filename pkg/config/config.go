package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"MarketScreener/internal/domain/models"
	domrepo "MarketScreener/internal/domain/repository"
	"MarketScreener/pkg/util"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// EvaluatorConfig enables one evaluator on a comma separated timeframe list.
type EvaluatorConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TimeFrames string `yaml:"timeframes"`
}

// PullbackConfig tunes the PB evaluator.
type PullbackConfig struct {
	EvaluatorConfig `yaml:",inline"`

	FastMA     string              `yaml:"fast_ma" default:"EMA50"`
	SlowMA     string              `yaml:"slow_ma" default:"WMA200"`
	TrendBars  int                 `yaml:"trend_bars" default:"2"`
	BullishSet []models.TimingCode `yaml:"bullish_set" default:"[1,4,-2,-3]"`
	BearishSet []models.TimingCode `yaml:"bearish_set" default:"[-1,-4,2,3]"`
}

// ContinuationConfig tunes the VCN evaluator.
type ContinuationConfig struct {
	EvaluatorConfig `yaml:",inline"`

	FastMA          string              `yaml:"fast_ma" default:"EMA8"`
	TrendMA         string              `yaml:"trend_ma" default:"WMA50"`
	Lookback        int                 `yaml:"lookback" default:"3"`
	IgnoreHistogram bool                `yaml:"ignore_histogram"`
	BullishSet      []models.TimingCode `yaml:"bullish_set" default:"[1,4]"`
	BearishSet      []models.TimingCode `yaml:"bearish_set" default:"[-1,-4]"`
}

// MACrossConfig tunes the MMX evaluator.
type MACrossConfig struct {
	EvaluatorConfig `yaml:",inline"`

	FastMA string `yaml:"fast_ma" default:"EMA50"`
	SlowMA string `yaml:"slow_ma" default:"WMA200"`
}

// AccumulationConfig tunes the ACC evaluator.
type AccumulationConfig struct {
	EvaluatorConfig `yaml:",inline"`

	MA         string              `yaml:"ma" default:"WMA50"`
	Oversold   float64             `yaml:"oversold" default:"30"`
	Overbought float64             `yaml:"overbought" default:"70"`
	BullishSet []models.TimingCode `yaml:"bullish_set" default:"[1,4]"`
	BearishSet []models.TimingCode `yaml:"bearish_set" default:"[-1,-4]"`
}

// MACDConfig tunes the MACD evaluator.
type MACDConfig struct {
	EvaluatorConfig `yaml:",inline"`

	MA         string              `yaml:"ma" default:"WMA150"`
	BullishSet []models.TimingCode `yaml:"bullish_set" default:"[1,4]"`
	BearishSet []models.TimingCode `yaml:"bearish_set" default:"[-1,-4]"`
}

// ChannelConfig throttles one alert channel. Burst 0 disables throttling.
type ChannelConfig struct {
	Enabled bool    `yaml:"enabled"`
	Burst   float64 `yaml:"burst"`
	PerSec  float64 `yaml:"per_sec"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"console"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"screener.logs"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
			Warnings  bool          `yaml:"include_warnings"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Engine struct {
		Symbols        []string      `yaml:"symbols"`
		TimeFrames     string        `yaml:"timeframes"`
		TrendMA        string        `yaml:"trend_ma" default:"WMA150"`
		SimpleTiming   bool          `yaml:"simple_timing"`
		Workers        int           `yaml:"workers" default:"4"`
		Feed           string        `yaml:"feed" default:"clickhouse"`
		History        bool          `yaml:"history"`
		PublishTimeout time.Duration `yaml:"publish_timeout" default:"5s"`
		CycleInterval  time.Duration `yaml:"cycle_interval"`
	} `yaml:"engine"`
	Signals struct {
		PB         PullbackConfig     `yaml:"pb"`
		VCN        ContinuationConfig `yaml:"vcn"`
		MMX        MACrossConfig      `yaml:"mmx"`
		ACC        AccumulationConfig `yaml:"acc"`
		MACD       MACDConfig         `yaml:"macd"`
		MMXPeriods int                `yaml:"mmx_periods" default:"24"`
	} `yaml:"signals"`
	Alerts struct {
		Email struct {
			ChannelConfig `yaml:",inline"`
			WebhookURL    string        `yaml:"webhook_url"`
			Token         string        `yaml:"token"`
			Timeout       time.Duration `yaml:"timeout" default:"5s"`
			MaxFailures   uint32        `yaml:"max_failures" default:"5"`
			OpenDuration  time.Duration `yaml:"open_duration" default:"30s"`
		} `yaml:"email"`
		Sound struct {
			ChannelConfig `yaml:",inline"`
			Channel       string `yaml:"channel" default:"screener:sound"`
		} `yaml:"sound"`
		Sounds     map[string]string `yaml:"sounds"`
		AuditTopic string            `yaml:"audit_topic"`
	} `yaml:"alerts"`
	Publish struct {
		WebSocket    bool   `yaml:"websocket"`
		KafkaTopic   string `yaml:"kafka_topic"`
		RedisChannel string `yaml:"redis_channel"`
	} `yaml:"publish"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"screener"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		BarsTopic    string   `yaml:"bars_topic" default:"market.bars"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id" default:"screener"`
			StartOffset string        `yaml:"start_offset" default:"latest"`
			Workers     int           `yaml:"workers" default:"1"`
			BufferSize  int           `yaml:"buffer_size" default:"256"`
			RetryMax    int           `yaml:"retry_max" default:"3"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic    string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"screener"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		InitSchema       bool          `yaml:"init_schema"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Stream struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		Token          string        `yaml:"token"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		MaxRPS         int           `yaml:"max_rps" default:"10"`
		BufferSize     int           `yaml:"buffer_size" default:"256"`
	} `yaml:"stream"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// Parse decodes YAML and fills unset fields from the default tags.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("SYMBOLS"); v != "" {
		c.Engine.Symbols = util.SplitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR port: %w", err)
		}
		c.Redis.Host, c.Redis.Port, c.Redis.Enabled = host, p, true
	}
	if v := getenv("ALERT_WEBHOOK_URL"); v != "" {
		c.Alerts.Email.WebhookURL = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("engine.symbols cannot be empty")
	}
	if c.Engine.Feed != "clickhouse" && c.Engine.Feed != "memory" {
		return fmt.Errorf("engine.feed must be 'clickhouse' or 'memory', got '%s'", c.Engine.Feed)
	}
	if c.Engine.Feed == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for the clickhouse feed")
	}
	if c.Engine.History && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for signal history")
	}
	if _, err := domrepo.ParseTimeFrames(c.Engine.TimeFrames); err != nil {
		return fmt.Errorf("engine.timeframes: %w", err)
	}
	for name, ev := range c.Evaluators() {
		if !ev.Enabled {
			continue
		}
		tfs, err := domrepo.ParseTimeFrames(ev.TimeFrames)
		if err != nil {
			return fmt.Errorf("signals.%s.timeframes: %w", name, err)
		}
		if len(tfs) == 0 {
			return fmt.Errorf("signals.%s.timeframes cannot be empty", name)
		}
	}
	if c.Signals.MMXPeriods < 2 {
		return fmt.Errorf("signals.mmx_periods must be at least 2")
	}
	for path, set := range c.impulsiveSets() {
		for _, code := range set {
			if !code.Valid() {
				return fmt.Errorf("signals.%s: timing code %d outside -4..-1, 1..4", path, code)
			}
		}
	}
	if c.Signals.PB.TrendBars < 1 || c.Signals.VCN.Lookback < 1 {
		return fmt.Errorf("signals.pb.trend_bars and signals.vcn.lookback must be at least 1")
	}
	if c.Signals.ACC.Oversold >= c.Signals.ACC.Overbought {
		return fmt.Errorf("signals.acc.oversold must be below signals.acc.overbought")
	}
	if c.Alerts.Email.Enabled && c.Alerts.Email.WebhookURL == "" {
		return fmt.Errorf("alerts.email.webhook_url is required when email alerts are enabled")
	}
	if c.Alerts.Sound.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("sound alerts require redis")
	}
	if c.Publish.RedisChannel != "" && !c.Redis.Enabled {
		return fmt.Errorf("publish.redis_channel requires redis")
	}
	needsKafka := c.Publish.KafkaTopic != "" || c.Alerts.AuditTopic != "" || c.Log.Collector.Enabled
	if (c.Kafka.Enabled || needsKafka) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Stream.Enabled && c.Stream.URL == "" {
		return fmt.Errorf("stream.url is required when the stream is enabled")
	}
	return nil
}

// Evaluators returns the evaluator sections keyed by signal name.
func (c *Config) Evaluators() map[string]EvaluatorConfig {
	return map[string]EvaluatorConfig{
		"PB":   c.Signals.PB.EvaluatorConfig,
		"VCN":  c.Signals.VCN.EvaluatorConfig,
		"MMX":  c.Signals.MMX.EvaluatorConfig,
		"ACC":  c.Signals.ACC.EvaluatorConfig,
		"MACD": c.Signals.MACD.EvaluatorConfig,
	}
}

// impulsiveSets lists every configured reference timing set by its yaml path.
func (c *Config) impulsiveSets() map[string][]models.TimingCode {
	return map[string][]models.TimingCode{
		"pb.bullish_set":   c.Signals.PB.BullishSet,
		"pb.bearish_set":   c.Signals.PB.BearishSet,
		"vcn.bullish_set":  c.Signals.VCN.BullishSet,
		"vcn.bearish_set":  c.Signals.VCN.BearishSet,
		"acc.bullish_set":  c.Signals.ACC.BullishSet,
		"acc.bearish_set":  c.Signals.ACC.BearishSet,
		"macd.bullish_set": c.Signals.MACD.BullishSet,
		"macd.bearish_set": c.Signals.MACD.BearishSet,
	}
}

// TimeFrames parses the extra timeframes whose timing is tracked.
func (c *Config) TimeFrames() []models.TimeFrame {
	tfs, _ := domrepo.ParseTimeFrames(c.Engine.TimeFrames)
	return tfs
}
