package notifier

import (
	"context"
	"fmt"
	"time"

	"MarketScreener/internal/domain/models"
	xhttp "MarketScreener/pkg/http"
	applogger "MarketScreener/pkg/logger"

	"github.com/sony/gobreaker"
)

// WebhookConfig configures delivery to a mail relay. The breaker opens after
// MaxFailures consecutive failures and stays open for OpenDuration.
type WebhookConfig struct {
	URL          string
	Token        string
	Timeout      time.Duration
	MaxFailures  uint32
	OpenDuration time.Duration
}

type webhookPayload struct {
	Subject   string           `json:"subject"`
	Symbol    string           `json:"symbol"`
	TimeFrame models.TimeFrame `json:"timeframe"`
	Strategy  string           `json:"strategy"`
	Points    int              `json:"points"`
	At        time.Time        `json:"at"`
}

// Webhook POSTs alerts as JSON. While the breaker is open calls fail fast
// with gobreaker.ErrOpenState.
type Webhook struct {
	cfg    WebhookConfig
	client *xhttp.Client
	cb     *gobreaker.CircuitBreaker
	logger *applogger.Logger
}

func NewWebhook(cfg WebhookConfig, l *applogger.Logger) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 30 * time.Second
	}

	w := &Webhook{
		cfg:    cfg,
		client: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout), xhttp.WithBearerToken(cfg.Token)),
		logger: l,
	}
	w.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "alert-webhook",
		Timeout: cfg.OpenDuration,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("Circuit breaker state changed",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()))
		},
	})
	return w
}

func (w *Webhook) Notify(ctx context.Context, a models.Alert) error {
	body := webhookPayload{
		Subject:   a.Subject,
		Symbol:    a.Symbol,
		TimeFrame: a.TimeFrame,
		Strategy:  a.Name,
		Points:    a.Value,
		At:        a.At,
	}

	_, err := w.cb.Execute(func() (interface{}, error) {
		return nil, w.client.PostJSON(ctx, w.cfg.URL, body)
	})
	if err != nil {
		return fmt.Errorf("webhook %s: %w", a.Subject, err)
	}
	return nil
}
