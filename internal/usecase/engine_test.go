package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketScreener/internal/domain/models"
	"MarketScreener/internal/repository"
	"MarketScreener/internal/services/notify"
	"MarketScreener/internal/services/signals"
	"MarketScreener/internal/services/state"
	"MarketScreener/internal/services/timing"
	"MarketScreener/pkg/cache"
	applogger "MarketScreener/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (r *alertRecorder) Notify(_ context.Context, a models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *alertRecorder) all() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Alert(nil), r.alerts...)
}

type historyRecorder struct {
	events []models.SignalEvent
}

func (h *historyRecorder) Record(_ context.Context, ev []models.SignalEvent) error {
	h.events = append(h.events, ev...)
	return nil
}

func (h *historyRecorder) Close() error { return nil }

type sinkRecorder struct {
	snaps []*models.Snapshot
}

func (s *sinkRecorder) Publish(snap *models.Snapshot) { s.snaps = append(s.snaps, snap) }

func h1Series(symbol string, m0, m1 models.MACDPoint) *models.Series {
	return &models.Series{
		Symbol:    symbol,
		TimeFrame: models.H1,
		Bars: []models.Bar{
			{Close: 1.1050, Low: 1.1030, High: 1.1060, Closed: true},
			{Close: 1.1045, Low: 1.1025, High: 1.1055, Closed: true},
		},
		MA: map[string][]float64{
			"WMA200": {1.1020, 1.1018},
			"EMA50":  {1.1040, 1.1038},
		},
		MACD: []models.MACDPoint{m0, m1},
	}
}

func d1Series(symbol string) *models.Series {
	return &models.Series{
		Symbol:    symbol,
		TimeFrame: models.D1,
		Bars:      []models.Bar{{Close: 1.0900, Closed: true}},
		MA:        map[string][]float64{"WMA200": {1.1000}},
		MACD:      []models.MACDPoint{{Line: -0.0001, Signal: -0.0004, Histogram: 0.0002}},
	}
}

type fixture struct {
	engine  *Engine
	feed    *repository.MemoryFeed
	clock   *clock
	alerts  *alertRecorder
	history *historyRecorder
	sink    *sinkRecorder
}

func newFixture(t *testing.T, symbols ...string) *fixture {
	t.Helper()
	return newFixtureWith(t, []signals.Binding{{
		Evaluator:  signals.NewPullback(signals.DefaultPullbackConfig()),
		TimeFrames: []models.TimeFrame{models.H1},
	}}, symbols...)
}

func newFixtureWith(t *testing.T, bindings []signals.Binding, symbols ...string) *fixture {
	t.Helper()
	f := &fixture{
		feed:    repository.NewMemoryFeed(),
		clock:   &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		alerts:  &alertRecorder{},
		history: &historyRecorder{},
		sink:    &sinkRecorder{},
	}
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	gate := notify.NewGate(repository.NewCacheNotificationStore(mc))
	dispatcher := notify.NewDispatcher(gate, applogger.NewNop(),
		notify.WithChannel(models.ChannelEmail, f.alerts, 0, 0),
		notify.WithClock(f.clock.Now))

	e, err := NewEngine(
		state.New(symbols, state.WithClock(f.clock.Now)),
		f.feed,
		timing.NewClassifier("WMA200"),
		bindings,
		dispatcher,
		applogger.NewNop(),
		WithHistory(f.history),
		WithSink(f.sink),
		WithEngineClock(f.clock.Now),
		WithWorkers(2),
	)
	require.NoError(t, err)
	f.engine = e
	return f
}

var (
	bar1 = [2]models.MACDPoint{
		{Line: 0.0002, Signal: 0.0001, Histogram: 0.0003},
		{Line: 0.0001, Signal: 0.0001, Histogram: 0.0001},
	}
	bar2 = [2]models.MACDPoint{
		{Line: -0.0002, Signal: -0.0001, Histogram: 0.0003},
		{Line: -0.0003, Signal: -0.0001, Histogram: -0.0001},
	}
)

func TestEngineEURUSDScenario(t *testing.T) {
	f := newFixture(t, "EURUSD")
	ctx := context.Background()

	f.feed.Put(h1Series("EURUSD", bar1[0], bar1[1]))
	f.feed.Put(d1Series("EURUSD"))

	snap, err := f.engine.Cycle(ctx)
	require.NoError(t, err)
	asset, ok := snap.Asset("EURUSD")
	require.True(t, ok)
	assert.Equal(t, models.Timing{models.H1: 1, models.D1: -2}, asset.Timing)
	assert.Empty(t, asset.Signals, "MACD above zero blocks the bullish pullback")
	assert.Empty(t, f.alerts.all())

	f.clock.Advance(time.Hour)
	f.feed.Put(h1Series("EURUSD", bar2[0], bar2[1]))
	snap, err = f.engine.Cycle(ctx)
	require.NoError(t, err)

	asset, _ = snap.Asset("EURUSD")
	assert.Equal(t, models.TimingCode(4), asset.Timing[models.H1])
	require.Len(t, asset.Signals, 1)
	sig := asset.Signals[0]
	assert.Equal(t, "PB", sig.Name)
	assert.Equal(t, 2, sig.Value)
	assert.Equal(t, models.MarketTiming{Reference: -2, Local: 4}, sig.Timing)
	created := sig.CreatedAt

	alerts := f.alerts.all()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Buy trade opportunity on H1 EURUSD - Strategy: PB, Points: 2", alerts[0].Subject)

	f.clock.Advance(time.Hour)
	snap, err = f.engine.Cycle(ctx)
	require.NoError(t, err)
	asset, _ = snap.Asset("EURUSD")
	require.Len(t, asset.Signals, 1)
	assert.Equal(t, created, asset.Signals[0].UpdatedAt)
	assert.Len(t, f.alerts.all(), 1, "same score does not alert twice")

	require.Len(t, f.history.events, 1)
	assert.Equal(t, models.ChangeInserted, f.history.events[0].Change)

	require.Len(t, f.sink.snaps, 3)
	assert.Equal(t, uint64(3), f.sink.snaps[2].Seq)
	assert.Same(t, f.sink.snaps[2], f.engine.Snapshot())
}

func TestEngineFeedErrorKeepsPreviousState(t *testing.T) {
	f := newFixture(t, "EURUSD")
	ctx := context.Background()

	f.feed.Put(h1Series("EURUSD", bar2[0], bar2[1]))
	f.feed.Put(d1Series("EURUSD"))
	_, err := f.engine.Cycle(ctx)
	require.NoError(t, err)

	f.feed.Fail("EURUSD", models.D1, errors.New("clickhouse timeout"))
	snap, err := f.engine.Cycle(ctx)
	require.NoError(t, err)

	asset, _ := snap.Asset("EURUSD")
	assert.Equal(t, models.Timing{models.H1: 4, models.D1: -2}, asset.Timing)
	assert.Len(t, asset.Signals, 1)
}

func TestEngineSnapshotCoversEveryInstrument(t *testing.T) {
	f := newFixture(t, "EURUSD", "GBPUSD", "USDJPY")
	f.feed.Put(h1Series("EURUSD", bar2[0], bar2[1]))
	f.feed.Put(d1Series("EURUSD"))
	f.feed.Put(h1Series("GBPUSD", bar1[0], bar1[1]))
	f.feed.Put(d1Series("GBPUSD"))

	snap, err := f.engine.Cycle(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Assets, 3)
	assert.Equal(t, []string{"EURUSD", "GBPUSD", "USDJPY"},
		[]string{snap.Assets[0].Name, snap.Assets[1].Name, snap.Assets[2].Name})
	assert.Len(t, snap.Assets[0].Signals, 1)
	assert.Empty(t, snap.Assets[1].Signals)
	assert.Len(t, snap.Assets[1].Timing, 2)
	assert.Empty(t, snap.Assets[2].Timing, "never loaded: empty, not partial")
	assert.Equal(t, 1, snap.ActiveSignals())
}

func TestEngineSnapshotCarriesClosedBarATR(t *testing.T) {
	f := newFixture(t, "EURUSD")
	ctx := context.Background()

	h1 := h1Series("EURUSD", bar1[0], bar1[1])
	h1.ATR = []float64{0.0012, 0.0011}
	f.feed.Put(h1)
	f.feed.Put(d1Series("EURUSD"))

	snap, err := f.engine.Cycle(ctx)
	require.NoError(t, err)
	asset, _ := snap.Asset("EURUSD")
	assert.Equal(t, map[models.TimeFrame]float64{models.H1: 0.0012}, asset.ATR)

	f.feed.Put(h1Series("EURUSD", bar1[0], bar1[1]))
	snap, err = f.engine.Cycle(ctx)
	require.NoError(t, err)
	asset, _ = snap.Asset("EURUSD")
	assert.Nil(t, asset.ATR, "replaced wholesale each cycle")
}

func TestEngineEvictsAndResetsGate(t *testing.T) {
	f := newFixture(t, "EURUSD")
	ctx := context.Background()

	f.feed.Put(h1Series("EURUSD", bar2[0], bar2[1]))
	f.feed.Put(d1Series("EURUSD"))
	_, err := f.engine.Cycle(ctx)
	require.NoError(t, err)

	f.feed.Put(h1Series("EURUSD", bar1[0], bar1[1]))
	snap, err := f.engine.Cycle(ctx)
	require.NoError(t, err)
	asset, _ := snap.Asset("EURUSD")
	assert.Empty(t, asset.Signals)

	f.feed.Put(h1Series("EURUSD", bar2[0], bar2[1]))
	_, err = f.engine.Cycle(ctx)
	require.NoError(t, err)
	assert.Len(t, f.alerts.all(), 2, "zero in between re-arms the alert")

	require.Len(t, f.history.events, 3)
	assert.Equal(t, models.ChangeEvicted, f.history.events[1].Change)
	assert.Equal(t, 2, f.history.events[1].Previous)
}

func TestEngineOnNewBar(t *testing.T) {
	f := newFixture(t, "EURUSD")
	f.feed.Put(h1Series("EURUSD", bar1[0], bar1[1]))
	f.feed.Put(d1Series("EURUSD"))
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ran, err := f.engine.OnNewBar(ctx, models.BarEvent{Symbol: "EURUSD", TimeFrame: models.H1, Time: at})
	require.NoError(t, err)
	assert.True(t, ran)

	ran, _ = f.engine.OnNewBar(ctx, models.BarEvent{Symbol: "EURUSD", TimeFrame: models.H1, Time: at})
	assert.False(t, ran, "replayed bar")

	ran, _ = f.engine.OnNewBar(ctx, models.BarEvent{Symbol: "EURUSD", TimeFrame: models.M5, Time: at})
	assert.False(t, ran, "timeframe not loaded")

	ran, _ = f.engine.OnNewBar(ctx, models.BarEvent{Symbol: "XAUUSD", TimeFrame: models.H1, Time: at})
	assert.False(t, ran, "untracked instrument")

	ran, _ = f.engine.OnNewBar(ctx, models.BarEvent{Symbol: "EURUSD", TimeFrame: models.D1, Time: at})
	assert.True(t, ran, "reference timeframe bars count")

	assert.Equal(t, uint64(2), f.engine.Snapshot().Seq)
}

func TestEngineOnNewBarRetriesAfterFailedCycle(t *testing.T) {
	f := newFixture(t, "EURUSD")
	f.feed.Put(h1Series("EURUSD", bar2[0], bar2[1]))
	f.feed.Put(d1Series("EURUSD"))
	ev := models.BarEvent{Symbol: "EURUSD", TimeFrame: models.H1, Time: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	ran, err := f.engine.OnNewBar(cancelled, ev)
	assert.True(t, ran)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.sink.snaps)

	ran, err = f.engine.OnNewBar(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, ran, "redelivered bar runs again")
	require.Len(t, f.sink.snaps, 1)
	asset, _ := f.sink.snaps[0].Asset("EURUSD")
	assert.Len(t, asset.Signals, 1)

	ran, _ = f.engine.OnNewBar(context.Background(), ev)
	assert.False(t, ran, "replay after success")
}

func TestEngineOnTickRetriesAfterFailedCycle(t *testing.T) {
	f := newFixture(t, "EURUSD")
	f.feed.Put(h1Series("EURUSD", bar1[0], bar1[1]))
	f.feed.Put(d1Series("EURUSD"))
	tick := models.TickEvent{Symbol: "EURUSD", Price: 1.1, Time: time.Date(2024, 3, 1, 12, 0, 10, 0, time.UTC)}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.OnTick(cancelled, tick)
	require.Error(t, err)

	ran, err := f.engine.OnTick(context.Background(), tick)
	require.NoError(t, err)
	assert.True(t, ran)
}

// flakyEvaluator scores every symbol except the one it fails on.
type flakyEvaluator struct {
	mu     sync.Mutex
	failOn string
}

func (e *flakyEvaluator) Name() string { return "FLK" }

func (e *flakyEvaluator) Depth() int { return 1 }

func (e *flakyEvaluator) Evaluate(in signals.Input) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if in.Symbol == e.failOn {
		return 3, errors.New("indicator missing")
	}
	return -1, nil
}

func (e *flakyEvaluator) fail(symbol string) {
	e.mu.Lock()
	e.failOn = symbol
	e.mu.Unlock()
}

func signalValue(a models.AssetSnapshot, name string) (int, bool) {
	for _, s := range a.Signals {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}

func TestEngineEvaluatorErrorIsolated(t *testing.T) {
	flaky := &flakyEvaluator{}
	f := newFixtureWith(t, []signals.Binding{
		{Evaluator: signals.NewPullback(signals.DefaultPullbackConfig()), TimeFrames: []models.TimeFrame{models.H1}},
		{Evaluator: flaky, TimeFrames: []models.TimeFrame{models.H1}},
	}, "EURUSD", "GBPUSD")
	for _, sym := range []string{"EURUSD", "GBPUSD"} {
		f.feed.Put(h1Series(sym, bar2[0], bar2[1]))
		f.feed.Put(d1Series(sym))
	}
	ctx := context.Background()

	snap, err := f.engine.Cycle(ctx)
	require.NoError(t, err)
	for _, sym := range []string{"EURUSD", "GBPUSD"} {
		a, _ := snap.Asset(sym)
		v, ok := signalValue(a, "FLK")
		require.True(t, ok, sym)
		assert.Equal(t, -1, v)
	}

	flaky.fail("GBPUSD")
	snap, err = f.engine.Cycle(ctx)
	require.NoError(t, err)

	gbp, _ := snap.Asset("GBPUSD")
	_, ok := signalValue(gbp, "FLK")
	assert.False(t, ok, "failed evaluation scores 0 and evicts")
	pb, ok := signalValue(gbp, "PB")
	assert.True(t, ok, "other evaluators on the same symbol run")
	assert.Equal(t, 2, pb)
	assert.Equal(t, models.TimingCode(4), gbp.Timing[models.H1])

	eur, _ := snap.Asset("EURUSD")
	v, ok := signalValue(eur, "FLK")
	assert.True(t, ok, "other symbols keep the evaluator")
	assert.Equal(t, -1, v)
	pb, _ = signalValue(eur, "PB")
	assert.Equal(t, 2, pb)
}

func TestEngineOnTickDetectsNewBar(t *testing.T) {
	f := newFixture(t, "EURUSD")
	f.feed.Put(h1Series("EURUSD", bar1[0], bar1[1]))
	f.feed.Put(d1Series("EURUSD"))
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 10, 0, time.UTC)

	tick := func(d time.Duration) bool {
		ran, err := f.engine.OnTick(ctx, models.TickEvent{Symbol: "EURUSD", Price: 1.1, Time: base.Add(d)})
		require.NoError(t, err)
		return ran
	}

	assert.True(t, tick(0), "first tick")
	assert.False(t, tick(30*time.Minute))
	assert.True(t, tick(time.Hour))
	assert.False(t, tick(time.Hour+time.Minute))

	ran, err := f.engine.OnTick(ctx, models.TickEvent{Symbol: "XAUUSD", Time: base})
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestEngineRejectsUnsupportedTimeFrame(t *testing.T) {
	_, err := NewEngine(state.New(nil), repository.NewMemoryFeed(), timing.NewClassifier("WMA200"), nil,
		notify.NewDispatcher(nil, applogger.NewNop()), applogger.NewNop(), WithTimeFrames("MN1"))
	assert.Error(t, err)
}

func TestEngineRender(t *testing.T) {
	f := newFixture(t, "EURUSD")
	f.feed.Put(h1Series("EURUSD", bar2[0], bar2[1]))
	f.feed.Put(d1Series("EURUSD"))
	_, err := f.engine.Cycle(context.Background())
	require.NoError(t, err)

	out := f.engine.Render()
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "-2, 4")
}
