package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"MarketScreener/internal/domain/models"
	"MarketScreener/pkg/cache"
	pkgkafka "MarketScreener/pkg/kafka"
	applogger "MarketScreener/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alert() models.Alert {
	return models.Alert{
		Channel:   models.ChannelEmail,
		Symbol:    "EURUSD",
		TimeFrame: models.H1,
		Name:      "PB",
		Value:     2,
		Subject:   "Buy trade opportunity on H1 EURUSD - Strategy: PB, Points: 2",
		At:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWebhookDelivers(t *testing.T) {
	var got webhookPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhook(WebhookConfig{URL: srv.URL, Token: "secret"}, applogger.NewNop())
	require.NoError(t, n.Notify(context.Background(), alert()))

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "PB", got.Strategy)
	assert.Equal(t, 2, got.Points)
	assert.Equal(t, models.H1, got.TimeFrame)
}

func TestWebhookBreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhook(WebhookConfig{URL: srv.URL, MaxFailures: 2, OpenDuration: time.Minute}, applogger.NewNop())
	ctx := context.Background()

	assert.ErrorContains(t, n.Notify(ctx, alert()), "unexpected status 502")
	assert.Error(t, n.Notify(ctx, alert()))

	err := n.Notify(ctx, alert())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRedisPublishesSound(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	sub := mc.Subscribe("screener:sound", 1)

	a := alert()
	a.Channel = models.ChannelSound
	a.Sound = "sounds/pb.wav"
	require.NoError(t, NewRedis(mc, "screener:sound").Notify(context.Background(), a))

	var ev SoundEvent
	require.NoError(t, json.Unmarshal([]byte(<-sub), &ev))
	assert.Equal(t, "sounds/pb.wav", ev.Sound)
	assert.Equal(t, "EURUSD", ev.Symbol)

	a.Sound = ""
	assert.Error(t, NewRedis(mc, "screener:sound").Notify(context.Background(), a))
}

type memWriter struct{ msgs []kafka.Message }

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestKafkaAudit(t *testing.T) {
	w := &memWriter{}
	n := NewKafka(pkgkafka.NewProducerWithWriter(w, "none"), "screener.alerts")
	require.NoError(t, n.Notify(context.Background(), alert()))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "EURUSD", string(w.msgs[0].Key))
	var a models.Alert
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &a))
	assert.Equal(t, "PB", a.Name)
}

type failing struct{ err error }

func (f failing) Notify(context.Context, models.Alert) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{NewLog(applogger.NewNop()), failing{err: boom}, failing{}}
	err := m.Notify(context.Background(), alert())
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, Multi{NewLog(applogger.NewNop())}.Notify(context.Background(), alert()))
}
