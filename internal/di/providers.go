package di

import (
	"fmt"
	"net/http"

	"MarketScreener/internal/domain/models"
	"MarketScreener/internal/domain/repository"
	"MarketScreener/internal/handler/api"
	mid "MarketScreener/internal/middleware"
	internalrepo "MarketScreener/internal/repository"
	"MarketScreener/internal/service/barstream"
	"MarketScreener/internal/service/broadcast"
	"MarketScreener/internal/service/notifier"
	"MarketScreener/internal/services/notify"
	"MarketScreener/internal/services/signals"
	"MarketScreener/internal/services/state"
	"MarketScreener/internal/services/timing"
	"MarketScreener/internal/usecase"
	pkgcache "MarketScreener/pkg/cache"
	pkgch "MarketScreener/pkg/clickhouse"
	"MarketScreener/pkg/config"
	xhttp "MarketScreener/pkg/http"
	pkgkafka "MarketScreener/pkg/kafka"
	applogger "MarketScreener/pkg/logger"
	"MarketScreener/pkg/metrics"
	"MarketScreener/pkg/server"
)

// defaultSounds are played by desktop agents when the config has no sounds section.
var defaultSounds = map[string]string{
	signals.NamePullback:     "sms-alert-1.wav",
	signals.NameContinuation: "sms-alert-3.wav",
	signals.NameMACross:      "sms-alert-4.wav",
	signals.NameAccumulation: "sms-alert-2.wav",
	signals.NameMACD:         "sms-alert-5.wav",
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no component publishes to Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger creates the application logger. Repeated errors are shipped
// to Kafka when the collector is enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:         "screener",
			TimeInterval:    cfg.Log.Collector.Interval,
			CountThreshold:  cfg.Log.Collector.Threshold,
			Topic:           cfg.Log.Collector.Topic,
			IncludeWarnings: cfg.Log.Collector.Warnings,
			Publisher:       producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when neither
// the feed nor the signal history use it.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Engine.Feed != "clickhouse" && !cfg.Engine.History {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithSchemaInit(cfg.ClickHouse.InitSchema),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideCache returns Redis when enabled, otherwise an in-process cache.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideIndicatorFeed selects the bar and indicator source.
func ProvideIndicatorFeed(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.IndicatorFeed, error) {
	switch cfg.Engine.Feed {
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse feed without client")
		}
		return internalrepo.NewCHIndicatorFeed(ch, l.Named("feed")), nil
	case "memory":
		return internalrepo.NewMemoryFeed(), nil
	default:
		return nil, fmt.Errorf("unknown feed %q", cfg.Engine.Feed)
	}
}

// ProvideSignalHistory returns the ClickHouse history writer, or nil when disabled.
func ProvideSignalHistory(cfg *config.Config, ch *pkgch.Client) repository.SignalHistory {
	if !cfg.Engine.History || ch == nil {
		return nil
	}
	return internalrepo.NewCHSignalHistory(ch)
}

func ProvideState(cfg *config.Config) *state.State {
	return state.New(cfg.Engine.Symbols)
}

func ProvideClassifier(cfg *config.Config) *timing.Classifier {
	return timing.NewClassifier(cfg.Engine.TrendMA, timing.WithSimple(cfg.Engine.SimpleTiming))
}

// ProvideBindings builds the enabled evaluators with their timeframe lists.
func ProvideBindings(cfg *config.Config) ([]signals.Binding, error) {
	sc := cfg.Signals
	candidates := []struct {
		cfg config.EvaluatorConfig
		ev  signals.Evaluator
	}{
		{sc.PB.EvaluatorConfig, signals.NewPullback(signals.PullbackConfig{
			FastMA:     sc.PB.FastMA,
			SlowMA:     sc.PB.SlowMA,
			TrendBars:  sc.PB.TrendBars,
			BullishSet: sc.PB.BullishSet,
			BearishSet: sc.PB.BearishSet,
		})},
		{sc.VCN.EvaluatorConfig, signals.NewContinuation(signals.ContinuationConfig{
			FastMA:           sc.VCN.FastMA,
			TrendMA:          sc.VCN.TrendMA,
			Lookback:         sc.VCN.Lookback,
			BullishSet:       sc.VCN.BullishSet,
			BearishSet:       sc.VCN.BearishSet,
			RequireHistogram: !sc.VCN.IgnoreHistogram,
		})},
		{sc.MMX.EvaluatorConfig, signals.NewMACross(signals.MACrossConfig{
			FastMA:  sc.MMX.FastMA,
			SlowMA:  sc.MMX.SlowMA,
			Periods: sc.MMXPeriods,
		})},
		{sc.ACC.EvaluatorConfig, signals.NewAccumulation(signals.AccumulationConfig{
			MA:         sc.ACC.MA,
			Oversold:   sc.ACC.Oversold,
			Overbought: sc.ACC.Overbought,
			BullishSet: sc.ACC.BullishSet,
			BearishSet: sc.ACC.BearishSet,
		})},
		{sc.MACD.EvaluatorConfig, signals.NewMACD(signals.MACDConfig{
			MA:         sc.MACD.MA,
			BullishSet: sc.MACD.BullishSet,
			BearishSet: sc.MACD.BearishSet,
		})},
	}

	var out []signals.Binding
	for _, c := range candidates {
		if !c.cfg.Enabled {
			continue
		}
		tfs, err := repository.ParseTimeFrames(c.cfg.TimeFrames)
		if err != nil {
			return nil, fmt.Errorf("%s timeframes: %w", c.ev.Name(), err)
		}
		out = append(out, signals.Binding{Evaluator: c.ev, TimeFrames: tfs})
	}
	return out, nil
}

func ProvideNotificationStore(c pkgcache.Service) repository.NotificationStore {
	return internalrepo.NewCacheNotificationStore(c)
}

func ProvideGate(store repository.NotificationStore) *notify.Gate {
	return notify.NewGate(store)
}

// ProvideDispatcher wires the EMAIL and SND channels. Every delivered alert
// is logged and, when an audit topic is set, copied to Kafka.
func ProvideDispatcher(
	cfg *config.Config,
	gate *notify.Gate,
	c pkgcache.Service,
	producer *pkgkafka.Producer,
	m repository.Metrics,
	l *applogger.Logger,
) *notify.Dispatcher {
	l = l.Named("alerts")
	common := notifier.Multi{notifier.NewLog(l)}
	if cfg.Alerts.AuditTopic != "" && producer != nil {
		common = append(common, notifier.NewKafka(producer, cfg.Alerts.AuditTopic))
	}

	sounds := cfg.Alerts.Sounds
	if len(sounds) == 0 {
		sounds = defaultSounds
	}

	opts := []notify.DispatcherOption{
		notify.WithSounds(sounds),
		notify.WithMetrics(m),
	}
	if email := cfg.Alerts.Email; email.Enabled {
		wh := notifier.NewWebhook(notifier.WebhookConfig{
			URL:          email.WebhookURL,
			Token:        email.Token,
			Timeout:      email.Timeout,
			MaxFailures:  email.MaxFailures,
			OpenDuration: email.OpenDuration,
		}, l)
		opts = append(opts, notify.WithChannel(models.ChannelEmail, append(notifier.Multi{wh}, common...), email.Burst, email.PerSec))
	}
	if snd := cfg.Alerts.Sound; snd.Enabled {
		rn := notifier.NewRedis(c, snd.Channel)
		opts = append(opts, notify.WithChannel(models.ChannelSound, append(notifier.Multi{rn}, common...), snd.Burst, snd.PerSec))
	}
	return notify.NewDispatcher(gate, l, opts...)
}

func ProvideHub(l *applogger.Logger) *broadcast.Hub {
	return broadcast.NewHub(l.Named("ws"))
}

// ProvideBroadcaster fans snapshots out to the WebSocket hub and the
// configured Kafka topic and Redis channel.
func ProvideBroadcaster(
	cfg *config.Config,
	hub *broadcast.Hub,
	producer *pkgkafka.Producer,
	c pkgcache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Broadcaster {
	var transports []repository.SnapshotPublisher
	if cfg.Publish.WebSocket {
		transports = append(transports, hub)
	}
	if cfg.Publish.KafkaTopic != "" && producer != nil {
		transports = append(transports, internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Publish.KafkaTopic))
	}
	if cfg.Publish.RedisChannel != "" {
		transports = append(transports, internalrepo.NewRedisSnapshotPublisher(c, cfg.Publish.RedisChannel))
	}
	return usecase.NewBroadcaster(l.Named("publisher"), m, cfg.Engine.PublishTimeout, transports...)
}

func ProvideEngine(
	cfg *config.Config,
	st *state.State,
	feed repository.IndicatorFeed,
	classifier *timing.Classifier,
	bindings []signals.Binding,
	dispatcher *notify.Dispatcher,
	history repository.SignalHistory,
	broadcaster *usecase.Broadcaster,
	m repository.Metrics,
	l *applogger.Logger,
) (*usecase.Engine, error) {
	opts := []usecase.EngineOption{
		usecase.WithTimeFrames(cfg.TimeFrames()...),
		usecase.WithWorkers(cfg.Engine.Workers),
		usecase.WithSink(broadcaster),
		usecase.WithEngineMetrics(m),
	}
	if history != nil {
		opts = append(opts, usecase.WithHistory(history))
	}
	return usecase.NewEngine(st, feed, classifier, bindings, dispatcher, l.Named("engine"), opts...)
}

// ProvideKafkaConsumer creates the bar event consumer, or nil when Kafka is disabled.
// Malformed messages fail validation in a hook and go to the DLQ without retries.
func ProvideKafkaConsumer(cfg *config.Config, engine *usecase.Engine, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	l = l.Named("consumer")
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerStartOffset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	h := usecase.NewBarEventsHandler(cfg.Kafka.BarsTopic, engine, m)
	consumer.RegisterHandler(h)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.ValidationHook(h.Validate),
		pkgkafka.LoggingHook(l),
	))
	return consumer, nil
}

// ProvideBarCollector connects the WebSocket bar stream, or returns nil when disabled.
func ProvideBarCollector(cfg *config.Config, engine *usecase.Engine, m repository.Metrics, l *applogger.Logger) *usecase.BarCollector {
	if !cfg.Stream.Enabled {
		return nil
	}
	l = l.Named("stream")
	stream := barstream.New(barstream.Config{
		URL:            cfg.Stream.URL,
		Token:          cfg.Stream.Token,
		Symbols:        cfg.Engine.Symbols,
		TimeFrames:     engine.TimeFrames(),
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		PingInterval:   cfg.Stream.PingInterval,
	}, l)
	pipe := mid.NewBarPipeline(engine, m,
		mid.WithMaxRPS(cfg.Stream.MaxRPS),
		mid.WithBufferSize(cfg.Stream.BufferSize),
	)
	return usecase.NewBarCollector(stream, pipe, m, l)
}

func ProvideHTTPServer(cfg *config.Config, engine *usecase.Engine, hub *broadcast.Hub, l *applogger.Logger) *xhttp.Server {
	l = l.Named("http")
	var stream http.Handler
	if cfg.Publish.WebSocket {
		stream = hub
	}
	return xhttp.NewServer(api.NewStateEchoHandler(l, engine, stream),
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	engine *usecase.Engine,
	broadcaster *usecase.Broadcaster,
	hub *broadcast.Hub,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	collector *usecase.BarCollector,
	producer *pkgkafka.Producer,
	c pkgcache.Service,
	ch *pkgch.Client,
	history repository.SignalHistory,
) *server.App {
	return server.New(cfg, l, engine, broadcaster, hub, httpServer, server.Deps{
		Consumer:   consumer,
		Collector:  collector,
		Producer:   producer,
		Cache:      c,
		ClickHouse: ch,
		History:    history,
	})
}
