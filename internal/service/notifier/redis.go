package notifier

import (
	"context"
	"fmt"

	"MarketScreener/internal/domain/models"
	"MarketScreener/pkg/cache"
)

// SoundEvent is what desktop agents receive on the sound channel.
type SoundEvent struct {
	Sound   string `json:"sound"`
	Subject string `json:"subject"`
	Symbol  string `json:"symbol"`
}

// Redis publishes sound alerts on a pub/sub channel.
type Redis struct {
	cache   cache.Service
	channel string
}

func NewRedis(c cache.Service, channel string) *Redis {
	return &Redis{cache: c, channel: channel}
}

func (n *Redis) Notify(ctx context.Context, a models.Alert) error {
	if a.Sound == "" {
		return fmt.Errorf("no sound configured for %s", a.Name)
	}
	return n.cache.Publish(ctx, n.channel, SoundEvent{Sound: a.Sound, Subject: a.Subject, Symbol: a.Symbol})
}
