package notifier

import (
	"context"

	"MarketScreener/internal/domain/models"
	pkgkafka "MarketScreener/pkg/kafka"
)

// Kafka appends every delivered alert to an audit topic keyed by symbol.
type Kafka struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafka(p *pkgkafka.Producer, topic string) *Kafka {
	return &Kafka{producer: p, topic: topic}
}

func (n *Kafka) Notify(ctx context.Context, a models.Alert) error {
	return n.producer.Publish(ctx, n.topic, []byte(a.Symbol), a)
}
