package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, SetCache(ctx, rdb, "k", payload{Name: "wallet"}, time.Minute))

	var got payload
	found, err := GetCache(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "wallet", got.Name)

	mr.FastForward(2 * time.Minute)
	found, err = GetCache(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteCachePrefix(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)

	for _, k := range []string{"txhistory:user:1:a", "txhistory:user:1:b", "txhistory:user:2:a"} {
		require.NoError(t, SetCache(ctx, rdb, k, 1, time.Minute))
	}
	require.NoError(t, DeleteCachePrefix(ctx, rdb, "txhistory:user:1:"))

	assert.False(t, mr.Exists("txhistory:user:1:a"))
	assert.False(t, mr.Exists("txhistory:user:1:b"))
	assert.True(t, mr.Exists("txhistory:user:2:a"))
}

func TestMarkOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)

	first, err := MarkOnce(ctx, rdb, "evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := MarkOnce(ctx, rdb, "evt_1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestNilClientIsNoop(t *testing.T) {
	ctx := context.Background()
	var dest int
	found, err := GetCache(ctx, nil, "k", &dest)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetCache(ctx, nil, "k", 1, time.Minute))
	assert.NoError(t, DeleteCache(ctx, nil, "k"))
	assert.NoError(t, DeleteCachePrefix(ctx, nil, "k"))
	first, err := MarkOnce(ctx, nil, "k", time.Minute)
	assert.NoError(t, err)
	assert.True(t, first)
}

func TestNewRedis(t *testing.T) {
	ctx := context.Background()
	rdb, err := NewRedis(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Nil(t, rdb)

	mr := miniredis.RunT(t)
	rdb, err = NewRedis(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	require.NotNil(t, rdb)
	assert.NoError(t, rdb.Close())

	mr.Close()
	_, err = NewRedis(ctx, mr.Addr(), "", 0)
	assert.Error(t, err)
}

func TestInvalidateUsers(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	for _, k := range []string{"user:1:wallets", "user:1:txs:page=1", "user:12:wallets", "user:2:wallets"} {
		require.NoError(t, mr.Set(k, "{}"))
	}

	InvalidateUsers(ctx, rdb, 1, 2)

	assert.False(t, mr.Exists("user:1:wallets"))
	assert.False(t, mr.Exists("user:1:txs:page=1"))
	assert.False(t, mr.Exists("user:2:wallets"))
	assert.True(t, mr.Exists("user:12:wallets"))
	InvalidateUsers(ctx, nil, 1)
}
