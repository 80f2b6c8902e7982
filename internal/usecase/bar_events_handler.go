package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MarketScreener/internal/domain/models"
	domrepo "MarketScreener/internal/domain/repository"
	pkgkafka "MarketScreener/pkg/kafka"
	"MarketScreener/pkg/util"

	"github.com/go-playground/validator/v10"
)

// EventSink is the engine entry point shared by every event source.
type EventSink interface {
	OnNewBar(ctx context.Context, ev models.BarEvent) (bool, error)
	OnTick(ctx context.Context, ev models.TickEvent) (bool, error)
}

// barMessage schema: {"type":"bar","symbol":"EURUSD","tf":"H1","t":1709294400}
// or {"type":"tick","symbol":"EURUSD","p":1.0841,"t":1709294461000}.
type barMessage struct {
	Type   string  `json:"type" validate:"omitempty,oneof=bar tick"`
	Symbol string  `json:"symbol" validate:"required,min=3,max=20"`
	TF     string  `json:"tf" validate:"required_unless=Type tick"`
	Price  float64 `json:"p" validate:"gte=0"`
	T      int64   `json:"t" validate:"gt=0"`
}

// BarEventsHandler feeds bar-close and tick messages from Kafka into the engine.
type BarEventsHandler struct {
	topic    string
	sink     EventSink
	metrics  domrepo.Metrics
	validate *validator.Validate
}

func NewBarEventsHandler(topic string, sink EventSink, metrics domrepo.Metrics) *BarEventsHandler {
	return &BarEventsHandler{topic: topic, sink: sink, metrics: metrics, validate: validator.New()}
}

func (h *BarEventsHandler) Topic() string { return h.topic }

// Validate rejects malformed payloads before they reach Handle. It is
// installed as a consumer hook so bad messages go to the DLQ without retries.
func (h *BarEventsHandler) Validate(_ string, b []byte) error {
	_, err := h.decode(b)
	return err
}

func (h *BarEventsHandler) decode(b []byte) (barMessage, error) {
	var m barMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode bar message: %w", err)
	}
	if err := h.validate.Struct(m); err != nil {
		return m, fmt.Errorf("invalid bar message: %w", err)
	}
	if m.Type != "tick" {
		tf, err := domrepo.ParseTimeFrame(m.TF)
		switch {
		case err == nil:
			m.TF = string(tf)
		case !isReference(m.TF):
			return m, err
		}
	}
	return m, nil
}

func (h *BarEventsHandler) Handle(ctx context.Context, b []byte) error {
	m, err := h.decode(b)
	if err != nil {
		h.metrics.RecordError("consumer_decode")
		return err
	}
	at := util.UnixAuto(m.T)
	h.metrics.RecordLatency("ingest_e2e", time.Since(at).Seconds())

	if m.Type == "tick" {
		_, err = h.sink.OnTick(ctx, models.TickEvent{Symbol: m.Symbol, Price: m.Price, Time: at})
	} else {
		_, err = h.sink.OnNewBar(ctx, models.BarEvent{Symbol: m.Symbol, TimeFrame: models.TimeFrame(m.TF), Time: at})
	}
	if err != nil {
		h.metrics.RecordError("consumer_cycle")
		return err
	}
	return nil
}

// isReference accepts the coarse timeframes that are only loaded as references.
func isReference(tf string) bool {
	switch models.TimeFrame(tf) {
	case models.D2, models.W1, models.MN1:
		return true
	}
	return false
}

var _ pkgkafka.MessageHandler = (*BarEventsHandler)(nil)
