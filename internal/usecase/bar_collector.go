package usecase

import (
	"context"

	"MarketScreener/internal/domain/models"
	drepo "MarketScreener/internal/domain/repository"
	mid "MarketScreener/internal/middleware"
	applogger "MarketScreener/pkg/logger"
)

// BarCollector pumps events from a bar stream through the pipeline into the engine.
type BarCollector struct {
	stream  drepo.BarStream
	pipe    *mid.BarPipeline
	metrics drepo.Metrics
	logger  *applogger.Logger
}

func NewBarCollector(stream drepo.BarStream, pipe *mid.BarPipeline, metrics drepo.Metrics, logger *applogger.Logger) *BarCollector {
	return &BarCollector{stream: stream, pipe: pipe, metrics: metrics, logger: logger}
}

// IsConnected returns true if the bar stream is connected.
func (c *BarCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *BarCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	go c.run(ctx)
	return nil
}

func (c *BarCollector) run(ctx context.Context) {
	for {
		bars, ticks, errs := c.stream.Read(ctx)
		c.consume(ctx, bars, ticks, errs)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		for {
			err := c.stream.Reconnect(ctx)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("Bar stream reconnect failed", applogger.Error(err))
		}
	}
}

// consume returns when the stream reports an error or closes.
func (c *BarCollector) consume(ctx context.Context, bars <-chan *models.BarEvent, ticks <-chan *models.TickEvent, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if ok && err != nil {
				c.logger.Error("Bar stream failed", applogger.Error(err))
			}
			return
		case ev, ok := <-bars:
			if !ok {
				return
			}
			if err := c.pipe.ProcessBar(ctx, ev); err != nil {
				c.logger.Warn("Bar event not processed", applogger.String("symbol", ev.Symbol), applogger.Error(err))
			}
		case ev, ok := <-ticks:
			if !ok {
				return
			}
			_ = c.pipe.ProcessTick(ctx, ev)
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *BarCollector) Shutdown(_ context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
