package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MarketScreener/internal/domain/repository"
	"MarketScreener/internal/service/broadcast"
	"MarketScreener/internal/usecase"
	pkgcache "MarketScreener/pkg/cache"
	pkgch "MarketScreener/pkg/clickhouse"
	"MarketScreener/pkg/config"
	xhttp "MarketScreener/pkg/http"
	pkgkafka "MarketScreener/pkg/kafka"
	applogger "MarketScreener/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg    *config.Config
	logger *applogger.Logger

	engine      *usecase.Engine
	broadcaster *usecase.Broadcaster
	hub         *broadcast.Hub
	httpServer  *xhttp.Server

	// optional, nil when disabled
	consumer  *pkgkafka.Consumer
	collector *usecase.BarCollector
	producer  *pkgkafka.Producer
	cache     pkgcache.Service
	chClient  *pkgch.Client
	history   repository.SignalHistory
}

// Deps groups the optional infrastructure the App owns and closes.
type Deps struct {
	Consumer   *pkgkafka.Consumer
	Collector  *usecase.BarCollector
	Producer   *pkgkafka.Producer
	Cache      pkgcache.Service
	ClickHouse *pkgch.Client
	History    repository.SignalHistory
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	engine *usecase.Engine,
	broadcaster *usecase.Broadcaster,
	hub *broadcast.Hub,
	httpServer *xhttp.Server,
	deps Deps,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		engine:      engine,
		broadcaster: broadcaster,
		hub:         hub,
		httpServer:  httpServer,
		consumer:    deps.Consumer,
		collector:   deps.Collector,
		producer:    deps.Producer,
		cache:       deps.Cache,
		chClient:    deps.ClickHouse,
		history:     deps.History,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	a.broadcaster.Start()

	// first cycle so /api/state and new /ws clients have data before any bar closes
	if _, err := a.engine.Cycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("Initial cycle failed", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.logger.Error("Bar stream start failed", applogger.Error(err))
		} else {
			a.logger.Info("Bar stream started", applogger.String("url", a.cfg.Stream.URL))
		}
	}

	if a.cfg.Engine.CycleInterval > 0 {
		go a.cycleLoop(ctx, a.cfg.Engine.CycleInterval)
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("HTTP server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("Screener running",
		applogger.Strings("symbols", a.cfg.Engine.Symbols),
		applogger.Any("timeframes", a.engine.TimeFrames()))

	<-ctx.Done()
	a.logger.Info("Shutdown signal received")
	return a.shutdown()
}

func (a *App) cycleLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.engine.Cycle(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn("Timed cycle failed", applogger.Error(err))
			}
		}
	}
}

// shutdown stops inputs first, then outputs, then closes infrastructure clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.logger.Warn("Bar stream stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("Kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("HTTP shutdown error", applogger.Error(err))
	}
	a.broadcaster.Stop()
	a.hub.Close()

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("Signal history close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("ClickHouse close error", applogger.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Cache close error", applogger.Error(err))
		}
	}
	a.logger.RemoveCollector()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("Kafka producer close error", applogger.Error(err))
		}
	}

	a.logger.Info("Shutdown complete")
	return nil
}
