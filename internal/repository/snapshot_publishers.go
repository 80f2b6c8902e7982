package repository

import (
	"context"
	"strconv"

	"MarketScreener/internal/domain/models"
	"MarketScreener/pkg/cache"
	pkgkafka "MarketScreener/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// KafkaSnapshotPublisher writes every snapshot under one key so the topic can be compacted.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) Name() string { return "kafka" }

func (p *KafkaSnapshotPublisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	return p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{{
		Key:   []byte("snapshot"),
		Value: snap,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(snap.Type)},
			{Key: "seq", Value: []byte(strconv.FormatUint(snap.Seq, 10))},
		},
	}})
}

// RedisSnapshotPublisher PUBLISHes the JSON snapshot on a pub/sub channel.
type RedisSnapshotPublisher struct {
	cache   cache.Service
	channel string
}

func NewRedisSnapshotPublisher(c cache.Service, channel string) *RedisSnapshotPublisher {
	return &RedisSnapshotPublisher{cache: c, channel: channel}
}

func (p *RedisSnapshotPublisher) Name() string { return "redis" }

func (p *RedisSnapshotPublisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	return p.cache.Publish(ctx, p.channel, snap)
}
