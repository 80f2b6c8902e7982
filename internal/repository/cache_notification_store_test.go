package repository

import (
	"context"
	"errors"
	"testing"

	"MarketScreener/pkg/cache"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheNotificationStoreRedis(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewCacheNotificationStore(cache.NewRedisCacheFromClient(db, "screener"))

	key := "EURUSD-H1-PB-EMAIL"
	full := "screener:notify:" + key

	mock.ExpectGet(full).RedisNil()
	mock.ExpectSet(full, "2", 0).SetVal("OK")
	mock.ExpectGet(full).SetVal("2")
	mock.ExpectGet(full).SetVal("garbage")
	mock.ExpectGet(full).SetErr(errors.New("connection refused"))

	v, err := store.GetInt(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	require.NoError(t, store.SetInt(ctx, key, 2))

	v, err = store.GetInt(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	v, err = store.GetInt(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, v, "malformed values read as default")

	_, err = store.GetInt(ctx, key, 0)
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheNotificationStoreMemory(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheNotificationStore(mc)

	require.NoError(t, store.SetInt(ctx, "GBPUSD-M5-MMX-SND", -1))
	v, err := store.GetInt(ctx, "GBPUSD-M5-MMX-SND", 0)
	require.NoError(t, err)
	assert.Equal(t, -1, v)

	v, err = store.GetInt(ctx, "missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
