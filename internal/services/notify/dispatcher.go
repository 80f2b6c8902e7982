package notify

import (
	"context"
	"fmt"
	"time"

	"MarketScreener/internal/domain/models"
	"MarketScreener/internal/domain/repository"
	"MarketScreener/internal/service/ratelimit"
	applogger "MarketScreener/pkg/logger"
	"MarketScreener/pkg/metrics"
)

// Notification results reported to metrics.
const (
	ResultSent       = "sent"
	ResultFailed     = "failed"
	ResultThrottled  = "throttled"
	ResultStoreError = "store_error"
)

// FormatSubject renders the alert subject line.
func FormatSubject(symbol string, sig models.Signal) string {
	return fmt.Sprintf("%s trade opportunity on %s %s - Strategy: %s, Points: %d",
		sig.Direction(), sig.TimeFrame, symbol, sig.Name, sig.Value)
}

type channel struct {
	name     models.Channel
	notifier repository.Notifier
	burst    float64
	perSec   float64
}

// Dispatcher runs the gate for every configured channel and hands alerts to
// the channel's notifier. The gate is written before delivery, so a failed
// delivery is never retried.
type Dispatcher struct {
	gate     *Gate
	channels []channel
	limiter  *ratelimit.Limiter
	sounds   map[string]string
	metrics  repository.Metrics
	logger   *applogger.Logger
	now      func() time.Time
}

type DispatcherOption func(*Dispatcher)

// WithChannel enables a channel. burst <= 0 disables throttling for it.
func WithChannel(ch models.Channel, n repository.Notifier, burst, perSec float64) DispatcherOption {
	return func(d *Dispatcher) {
		d.channels = append(d.channels, channel{name: ch, notifier: n, burst: burst, perSec: perSec})
	}
}

// WithSounds sets the sound file per signal name for the SND channel.
func WithSounds(sounds map[string]string) DispatcherOption {
	return func(d *Dispatcher) { d.sounds = sounds }
}

func WithLimiter(l *ratelimit.Limiter) DispatcherOption {
	return func(d *Dispatcher) { d.limiter = l }
}

func WithMetrics(m repository.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(gate *Gate, logger *applogger.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		gate:    gate,
		sounds:  map[string]string{},
		metrics: metrics.Noop{},
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.limiter == nil {
		d.limiter = ratelimit.New()
	}
	return d
}

// Dispatch evaluates one (symbol, tf, signal) result on every channel and
// returns the alerts that were delivered. Zero values only reset the gate.
func (d *Dispatcher) Dispatch(ctx context.Context, symbol string, tf models.TimeFrame, name string, value int) []models.Alert {
	var sent []models.Alert
	for _, ch := range d.channels {
		key := Key(symbol, tf, name, ch.name)
		ok, err := d.gate.ShouldNotify(ctx, key, value)
		if err != nil {
			d.logger.Error("Notification store unavailable",
				applogger.String("key", key),
				applogger.Error(err))
			d.metrics.RecordNotification(string(ch.name), ResultStoreError)
			continue
		}
		if !ok {
			continue
		}

		if !d.limiter.Allow(string(ch.name), ch.burst, ch.perSec) {
			d.logger.Warn("Alert throttled",
				applogger.String("key", key),
				applogger.Int("value", value))
			d.metrics.RecordNotification(string(ch.name), ResultThrottled)
			continue
		}

		alert := models.Alert{
			Channel:   ch.name,
			Symbol:    symbol,
			TimeFrame: tf,
			Name:      name,
			Value:     value,
			Subject:   FormatSubject(symbol, models.Signal{Name: name, TimeFrame: tf, Value: value}),
			At:        d.now(),
		}
		if ch.name == models.ChannelSound {
			alert.Sound = d.sounds[name]
		}

		if err := ch.notifier.Notify(ctx, alert); err != nil {
			d.logger.Error("Alert delivery failed",
				applogger.String("channel", string(ch.name)),
				applogger.String("subject", alert.Subject),
				applogger.Error(err))
			d.metrics.RecordNotification(string(ch.name), ResultFailed)
			continue
		}
		d.metrics.RecordNotification(string(ch.name), ResultSent)
		sent = append(sent, alert)
	}
	return sent
}
