// Package notifier contains the delivery channels behind the alert dispatcher.
package notifier

import (
	"context"
	"errors"

	"MarketScreener/internal/domain/models"
	"MarketScreener/internal/domain/repository"
	applogger "MarketScreener/pkg/logger"
)

// Log writes alerts to the application log. It is the fallback when a channel
// has no external transport configured.
type Log struct {
	logger *applogger.Logger
}

func NewLog(l *applogger.Logger) *Log {
	return &Log{logger: l}
}

func (n *Log) Notify(_ context.Context, a models.Alert) error {
	fields := []applogger.Field{
		applogger.String("channel", string(a.Channel)),
		applogger.String("subject", a.Subject),
	}
	if a.Sound != "" {
		fields = append(fields, applogger.String("sound", a.Sound))
	}
	n.logger.Info("Alert", fields...)
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []repository.Notifier

func (m Multi) Notify(ctx context.Context, a models.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
