package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"MarketScreener/pkg/cache"
	"MarketScreener/pkg/util"
)

// CacheNotificationStore keeps last-notified values as plain integers under "notify:{key}".
// Values never expire.
type CacheNotificationStore struct {
	cache cache.Service
}

func NewCacheNotificationStore(c cache.Service) *CacheNotificationStore {
	return &CacheNotificationStore{cache: c}
}

// GetInt returns def when the key is missing or does not hold an integer.
func (s *CacheNotificationStore) GetInt(ctx context.Context, key string, def int) (int, error) {
	var raw string
	if err := s.cache.Get(ctx, cache.GenerateKey("notify", key), &raw); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return def, nil
		}
		return def, fmt.Errorf("get %s: %w", key, err)
	}
	return util.ParseIntDefault(raw, def), nil
}

func (s *CacheNotificationStore) SetInt(ctx context.Context, key string, v int) error {
	if err := s.cache.Set(ctx, cache.GenerateKey("notify", key), strconv.Itoa(v), 0); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
