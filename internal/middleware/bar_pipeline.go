package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketScreener/internal/domain/models"
	domrepo "MarketScreener/internal/domain/repository"
	"MarketScreener/internal/service/ratelimit"
)

// Sink is the downstream the pipeline feeds.
type Sink interface {
	OnNewBar(ctx context.Context, ev models.BarEvent) (bool, error)
	OnTick(ctx context.Context, ev models.TickEvent) (bool, error)
}

// BarPipeline sits between the bar stream and the engine. It validates events,
// throttles ticks per symbol and keeps bar events that failed downstream in a
// bounded buffer for retry.
type BarPipeline struct {
	sink    Sink
	metrics domrepo.Metrics
	maxRPS  int
	bufSize int
	bufCh   chan models.BarEvent
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	ticks   *ratelimit.Limiter
}

type PipelineOption func(*BarPipeline)

// WithMaxRPS caps ticks forwarded per symbol per second. 0 disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *BarPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets how many failed bar events are kept for retry.
func WithBufferSize(n int) PipelineOption {
	return func(p *BarPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewBarPipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *BarPipeline {
	p := &BarPipeline{
		sink:    sink,
		metrics: metrics,
		maxRPS:  10,
		bufSize: 256,
		stopCh:  make(chan struct{}),
		ticks:   ratelimit.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.BarEvent, p.bufSize)
	return p
}

// Start launches the retry loop for buffered bar events.
func (p *BarPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case ev := <-p.bufCh:
				if _, err := p.sink.OnNewBar(ctx, ev); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

func (p *BarPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
}

// Buffered returns the number of bar events waiting for retry.
func (p *BarPipeline) Buffered() int { return len(p.bufCh) }

// ProcessBar forwards a bar event, buffering it when the engine fails.
func (p *BarPipeline) ProcessBar(ctx context.Context, ev *models.BarEvent) error {
	start := time.Now()
	if err := validateBar(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if _, err := p.sink.OnNewBar(ctx, *ev); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- *ev:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// ProcessTick forwards a tick unless the symbol is over its rate. Ticks are never buffered.
func (p *BarPipeline) ProcessTick(ctx context.Context, ev *models.TickEvent) error {
	if err := validateTick(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.maxRPS > 0 && !p.ticks.Allow(ev.Symbol, 1, float64(p.maxRPS)) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}
	if _, err := p.sink.OnTick(ctx, *ev); err != nil {
		p.metrics.RecordError("pipeline_process")
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

func validateBar(ev *models.BarEvent) error {
	if ev == nil {
		return fmt.Errorf("bar event nil")
	}
	if ev.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if ev.TimeFrame.Duration() == 0 {
		return fmt.Errorf("timeframe %q: %w", ev.TimeFrame, domrepo.ErrUnsupportedTimeframe)
	}
	if ev.Time.IsZero() {
		return fmt.Errorf("time missing")
	}
	return nil
}

func validateTick(ev *models.TickEvent) error {
	if ev == nil {
		return fmt.Errorf("tick event nil")
	}
	if ev.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if ev.Time.IsZero() {
		return fmt.Errorf("time missing")
	}
	if ev.Price < 0 {
		return fmt.Errorf("negative price")
	}
	return nil
}
