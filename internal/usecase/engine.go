package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"MarketScreener/internal/domain/models"
	"MarketScreener/internal/domain/repository"
	"MarketScreener/internal/services/notify"
	"MarketScreener/internal/services/render"
	"MarketScreener/internal/services/signals"
	"MarketScreener/internal/services/state"
	"MarketScreener/internal/services/timing"
	applogger "MarketScreener/pkg/logger"
	"MarketScreener/pkg/metrics"
	"MarketScreener/pkg/util"
)

// SnapshotSink receives the snapshot produced at the end of every cycle.
type SnapshotSink interface {
	Publish(snap *models.Snapshot)
}

type EngineOption func(*Engine)

// WithTimeFrames adds timeframes whose timing is tracked even when no evaluator runs on them.
func WithTimeFrames(tfs ...models.TimeFrame) EngineOption {
	return func(e *Engine) { e.tracked = append(e.tracked, tfs...) }
}

// WithWorkers bounds the number of instruments loaded and evaluated in parallel.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithHistory(h repository.SignalHistory) EngineOption {
	return func(e *Engine) { e.history = h }
}

func WithSink(s SnapshotSink) EngineOption {
	return func(e *Engine) { e.sink = s }
}

func WithEngineMetrics(m repository.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func WithRenderer(r render.Renderer) EngineOption {
	return func(e *Engine) { e.renderer = r }
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// Engine runs evaluation cycles over every tracked instrument. Cycles are
// serialized; loading and evaluation fan out over a bounded worker pool and
// results are applied to the state in registration order.
type Engine struct {
	state      *state.State
	feed       repository.IndicatorFeed
	classifier *timing.Classifier
	bindings   []signals.Binding
	dispatcher *notify.Dispatcher
	history    repository.SignalHistory
	sink       SnapshotSink
	renderer   render.Renderer
	metrics    repository.Metrics
	logger     *applogger.Logger
	now        func() time.Time
	workers    int

	tracked  []models.TimeFrame
	required []models.TimeFrame
	depth    map[models.TimeFrame]int

	mu     sync.Mutex
	seq    uint64
	latest atomic.Pointer[models.Snapshot]

	barMu    sync.Mutex
	lastBar  map[string]time.Time
	lastTick map[string]time.Time
}

func NewEngine(
	st *state.State,
	feed repository.IndicatorFeed,
	classifier *timing.Classifier,
	bindings []signals.Binding,
	dispatcher *notify.Dispatcher,
	logger *applogger.Logger,
	opts ...EngineOption,
) (*Engine, error) {
	e := &Engine{
		state:      st,
		feed:       feed,
		classifier: classifier,
		bindings:   bindings,
		dispatcher: dispatcher,
		history:    noHistory{},
		renderer:   render.NewText(),
		metrics:    metrics.Noop{},
		logger:     logger,
		now:        time.Now,
		workers:    4,
		lastBar:    make(map[string]time.Time),
		lastTick:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, b := range bindings {
		e.tracked = append(e.tracked, b.TimeFrames...)
	}
	required, err := timing.RequiredTimeFrames(e.tracked)
	if err != nil {
		return nil, fmt.Errorf("engine timeframes: %w", err)
	}
	e.required = required

	// one closed bar for timing, plus the bar that may still be forming
	e.depth = make(map[models.TimeFrame]int, len(required))
	for _, tf := range required {
		e.depth[tf] = 2
	}
	for _, b := range bindings {
		for _, tf := range b.TimeFrames {
			if d := b.Evaluator.Depth() + 1; d > e.depth[tf] {
				e.depth[tf] = d
			}
		}
	}
	return e, nil
}

type evaluation struct {
	name   string
	tf     models.TimeFrame
	timing models.MarketTiming
	value  int
	err    error
}

type instrumentResult struct {
	symbol string
	timing models.Timing
	atr    map[models.TimeFrame]float64
	evals  []evaluation
	err    error
}

// Cycle recomputes timing and signals for every instrument, dispatches alerts
// and publishes the resulting snapshot.
func (e *Engine) Cycle(ctx context.Context) (*models.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	results := e.evaluateAll(ctx)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cycle aborted: %w", err)
	}

	now := e.now()
	var events []models.SignalEvent
	for _, r := range results {
		if r.err != nil {
			e.logger.Error("Instrument skipped",
				applogger.String("symbol", r.symbol),
				applogger.Error(r.err))
			e.metrics.RecordError("feed")
			continue
		}
		e.state.ReplaceTiming(r.symbol, r.timing)
		e.state.ReplaceATR(r.symbol, r.atr)

		for _, ev := range r.evals {
			if ev.err != nil {
				e.logger.Warn("Evaluator failed", applogger.Error(ev.err))
				e.metrics.RecordError("evaluator")
			}
			change, prev := e.state.Upsert(r.symbol, models.Signal{
				Name:      ev.name,
				TimeFrame: ev.tf,
				Value:     ev.value,
				Timing:    ev.timing,
			})
			if change != models.ChangeNone && change != models.ChangeRefreshed {
				e.metrics.RecordSignal(ev.name, string(ev.tf), change.String())
				events = append(events, models.SignalEvent{
					Symbol:    r.symbol,
					Name:      ev.name,
					TimeFrame: ev.tf,
					Value:     ev.value,
					Previous:  prev,
					Change:    change,
					Timing:    ev.timing,
					At:        now,
				})
			}
			e.dispatcher.Dispatch(ctx, r.symbol, ev.tf, ev.name, ev.value)
		}
	}

	e.seq++
	snap := e.state.Snapshot(e.seq, now)
	e.latest.Store(snap)

	if len(events) > 0 {
		if err := e.history.Record(ctx, events); err != nil {
			e.logger.Error("Signal history write failed", applogger.Int("events", len(events)), applogger.Error(err))
			e.metrics.RecordError("history")
		}
	}
	if e.sink != nil {
		e.sink.Publish(snap)
	}

	elapsed := time.Since(start)
	e.metrics.RecordCycle(elapsed.Seconds())
	e.logger.Debug("Cycle complete",
		applogger.Uint64("seq", snap.Seq),
		applogger.Int("signals", snap.ActiveSignals()),
		applogger.Int("changes", len(events)),
		applogger.Duration("elapsed", elapsed))
	return snap, nil
}

func (e *Engine) evaluateAll(ctx context.Context) []instrumentResult {
	symbols := e.state.Symbols()
	results := make([]instrumentResult, len(symbols))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(e.workers, len(symbols)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.evaluate(ctx, symbols[i])
			}
		}()
	}
	for i := range symbols {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (e *Engine) evaluate(ctx context.Context, symbol string) instrumentResult {
	res := instrumentResult{symbol: symbol}

	series := make(map[models.TimeFrame]*models.Series, len(e.required))
	for _, tf := range e.required {
		start := time.Now()
		s, err := e.feed.Series(ctx, symbol, tf, e.depth[tf])
		e.metrics.RecordLatency("feed", time.Since(start).Seconds())
		if err != nil {
			res.err = fmt.Errorf("load %s %s: %w", symbol, tf, err)
			return res
		}
		series[tf] = s
	}

	t, err := e.classifier.ClassifyAll(series, e.tracked)
	if err != nil {
		res.err = fmt.Errorf("timing %s: %w", symbol, err)
		return res
	}
	res.timing = t
	res.atr = latestATR(series, e.tracked)

	for _, b := range e.bindings {
		for _, tf := range b.TimeFrames {
			ev := evaluation{name: b.Evaluator.Name(), tf: tf}
			mt, err := timing.Market(t, tf)
			if err != nil {
				ev.err = err
				res.evals = append(res.evals, ev)
				continue
			}
			ev.timing = mt
			ev.value, ev.err = signals.Run(b.Evaluator, signals.Input{
				Symbol:    symbol,
				TimeFrame: tf,
				Timing:    mt,
				Series:    series[tf],
			})
			res.evals = append(res.evals, ev)
		}
	}
	return res
}

// latestATR reads the last closed-bar ATR of each tracked timeframe. Series
// without an ATR column are skipped.
func latestATR(series map[models.TimeFrame]*models.Series, tracked []models.TimeFrame) map[models.TimeFrame]float64 {
	var out map[models.TimeFrame]float64
	for _, tf := range tracked {
		v, err := series[tf].Closed().ATRAt(0)
		if err != nil {
			continue
		}
		if out == nil {
			out = make(map[models.TimeFrame]float64, len(tracked))
		}
		out[tf] = v
	}
	return out
}

// OnNewBar runs a cycle for the first event of every (symbol, timeframe, bar).
// Events for untracked instruments or timeframes and replays are ignored.
func (e *Engine) OnNewBar(ctx context.Context, ev models.BarEvent) (bool, error) {
	if !e.state.Has(ev.Symbol) || !e.isRequired(ev.TimeFrame) {
		return false, nil
	}

	e.barMu.Lock()
	key := ev.Symbol + "|" + string(ev.TimeFrame)
	prev, seen := e.lastBar[key]
	if seen && !ev.Time.After(prev) {
		e.barMu.Unlock()
		return false, nil
	}
	e.lastBar[key] = ev.Time
	e.barMu.Unlock()

	if _, err := e.Cycle(ctx); err != nil {
		// forget the bar so a redelivery runs the cycle again
		e.barMu.Lock()
		if e.lastBar[key].Equal(ev.Time) {
			if seen {
				e.lastBar[key] = prev
			} else {
				delete(e.lastBar, key)
			}
		}
		e.barMu.Unlock()
		return true, err
	}
	return true, nil
}

// OnTick runs a cycle when the tick is the first one of a new bar on any
// tracked timeframe. The first tick seen for an instrument always qualifies.
func (e *Engine) OnTick(ctx context.Context, ev models.TickEvent) (bool, error) {
	if !e.state.Has(ev.Symbol) {
		return false, nil
	}

	type mark struct {
		key  string
		prev time.Time
		seen bool
		open time.Time
	}
	e.barMu.Lock()
	var advanced []mark
	for _, tf := range e.tracked {
		open := util.BarOpen(ev.Time, tf.Duration())
		key := ev.Symbol + "|" + string(tf)
		if last, ok := e.lastTick[key]; !ok || open.After(last) {
			e.lastTick[key] = open
			advanced = append(advanced, mark{key: key, prev: last, seen: ok, open: open})
		}
	}
	e.barMu.Unlock()

	if len(advanced) == 0 {
		return false, nil
	}
	if _, err := e.Cycle(ctx); err != nil {
		e.barMu.Lock()
		for _, m := range advanced {
			if !e.lastTick[m.key].Equal(m.open) {
				continue
			}
			if m.seen {
				e.lastTick[m.key] = m.prev
			} else {
				delete(e.lastTick, m.key)
			}
		}
		e.barMu.Unlock()
		return true, err
	}
	return true, nil
}

func (e *Engine) isRequired(tf models.TimeFrame) bool {
	for _, r := range e.required {
		if r == tf {
			return true
		}
	}
	return false
}

// Snapshot returns the snapshot of the last cycle, or the current state when
// no cycle has run yet.
func (e *Engine) Snapshot() *models.Snapshot {
	if snap := e.latest.Load(); snap != nil {
		return snap
	}
	return e.state.Snapshot(0, e.now())
}

// Render formats the latest snapshot as text.
func (e *Engine) Render() string {
	return e.renderer.Render(e.Snapshot())
}

// TimeFrames returns the timeframes loaded every cycle.
func (e *Engine) TimeFrames() []models.TimeFrame {
	return append([]models.TimeFrame(nil), e.required...)
}

type noHistory struct{}

func (noHistory) Record(context.Context, []models.SignalEvent) error { return nil }

func (noHistory) Close() error { return nil }
