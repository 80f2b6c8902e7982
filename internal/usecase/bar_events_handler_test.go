package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketScreener/internal/domain/models"
	"MarketScreener/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	bars  []models.BarEvent
	ticks []models.TickEvent
	err   error
}

func (r *eventRecorder) OnNewBar(_ context.Context, ev models.BarEvent) (bool, error) {
	r.bars = append(r.bars, ev)
	return true, r.err
}

func (r *eventRecorder) OnTick(_ context.Context, ev models.TickEvent) (bool, error) {
	r.ticks = append(r.ticks, ev)
	return true, r.err
}

func TestBarEventsHandler(t *testing.T) {
	rec := &eventRecorder{}
	h := NewBarEventsHandler("market.bars", rec, metrics.Noop{})
	assert.Equal(t, "market.bars", h.Topic())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, []byte(`{"type":"bar","symbol":"EURUSD","tf":"h1","t":1709294400}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"symbol":"EURUSD","tf":"D2","t":1709294400000}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"type":"tick","symbol":"EURUSD","p":1.0841,"t":1709294461000}`)))

	require.Len(t, rec.bars, 2)
	assert.Equal(t, models.H1, rec.bars[0].TimeFrame)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), rec.bars[0].Time)
	assert.Equal(t, models.D2, rec.bars[1].TimeFrame)
	require.Len(t, rec.ticks, 1)
	assert.InDelta(t, 1.0841, rec.ticks[0].Price, 1e-9)
}

func TestBarEventsHandlerRejects(t *testing.T) {
	h := NewBarEventsHandler("market.bars", &eventRecorder{}, metrics.Noop{})
	for name, payload := range map[string]string{
		"not json":       `{`,
		"missing symbol": `{"tf":"H1","t":1}`,
		"missing tf":     `{"symbol":"EURUSD","t":1}`,
		"unsupported tf": `{"symbol":"EURUSD","tf":"H2","t":1}`,
		"missing time":   `{"symbol":"EURUSD","tf":"H1"}`,
		"unknown type":   `{"type":"quote","symbol":"EURUSD","tf":"H1","t":1}`,
		"negative price": `{"type":"tick","symbol":"EURUSD","p":-1,"t":1}`,
	} {
		assert.Error(t, h.Validate("market.bars", []byte(payload)), name)
	}
}

func TestBarEventsHandlerPropagatesCycleError(t *testing.T) {
	rec := &eventRecorder{err: errors.New("cycle aborted")}
	h := NewBarEventsHandler("market.bars", rec, metrics.Noop{})
	assert.Error(t, h.Handle(context.Background(), []byte(`{"symbol":"EURUSD","tf":"H1","t":1709294400}`)))
}
