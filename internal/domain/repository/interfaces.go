package repository

import (
	"context"

	"MarketScreener/internal/domain/models"
)

// IndicatorFeed supplies bars and precomputed indicator outputs.
type IndicatorFeed interface {
	Series(ctx context.Context, symbol string, tf models.TimeFrame, depth int) (*models.Series, error)
}

// NotificationStore persists the last notified value per key.
type NotificationStore interface {
	GetInt(ctx context.Context, key string, def int) (int, error)
	SetInt(ctx context.Context, key string, v int) error
}

// SnapshotPublisher is one broadcast transport for aggregate snapshots.
type SnapshotPublisher interface {
	Name() string
	Publish(ctx context.Context, snap *models.Snapshot) error
}

// Notifier delivers a formatted alert to an external channel.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// SignalHistory records signal transitions.
type SignalHistory interface {
	Record(ctx context.Context, events []models.SignalEvent) error
	Close() error
}

// BarStream is a push source of bar and tick events.
type BarStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.BarEvent, <-chan *models.TickEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Metrics is implemented by pkg/metrics. Labels are plain strings.
type Metrics interface {
	RecordCycle(seconds float64)
	RecordSignal(name, tf, change string)
	RecordNotification(channel, result string)
	RecordPublish(transport string, err error)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
