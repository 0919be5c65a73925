package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rc := NewRedisCache(client, Config{Prefix: "test:"})
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

func TestRedisCache_GetSet(t *testing.T) {
	rc, mr := setupTestRedis(t)
	ctx := context.Background()

	got, err := rc.Get(ctx, readme)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, rc.Set(ctx, &Entry{
		URL:          readme,
		StatusCode:   200,
		Body:         []byte("# Docs"),
		ContentType:  "text/markdown",
		LastModified: "Wed, 21 Oct 2015 07:28:00 GMT",
		TTL:          time.Minute,
		StaleTime:    5 * time.Minute,
	}))
	assert.True(t, mr.Exists("test:"+readme))
	assert.Equal(t, 6*time.Minute, mr.TTL("test:"+readme))

	got, err = rc.Get(ctx, readme)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "# Docs", string(got.Body))
	assert.Equal(t, "text/markdown", got.ContentType)
	assert.Equal(t, "Wed, 21 Oct 2015 07:28:00 GMT", got.LastModified)
	assert.True(t, got.IsFresh())
}

func TestRedisCache_Expiry(t *testing.T) {
	rc, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, &Entry{URL: readme, TTL: time.Second, StaleTime: time.Second}))
	mr.FastForward(3 * time.Second)

	got, err := rc.Get(ctx, readme)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCache_TooOldIsDeleted(t *testing.T) {
	rc, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, &Entry{
		URL:       readme,
		StoredAt:  time.Now().Add(-time.Hour),
		TTL:       time.Hour,
		StaleTime: time.Minute,
	}))

	got, err := rc.Get(ctx, readme)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("test:"+readme))
}

func TestRedisCache_DeleteClear(t *testing.T) {
	rc, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, &Entry{URL: readme}))
	require.NoError(t, rc.Set(ctx, &Entry{URL: readme + "?plain=1"}))
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, rc.Delete(ctx, readme))
	assert.False(t, mr.Exists("test:"+readme))

	require.NoError(t, rc.Clear(ctx))
	assert.False(t, mr.Exists("test:"+readme+"?plain=1"))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisCache_ConnectionError(t *testing.T) {
	rc, mr := setupTestRedis(t)
	mr.Close()

	_, err := rc.Get(context.Background(), readme)
	assert.Error(t, err)
	assert.Error(t, rc.Ping(context.Background()))
}

func TestNewRedisCacheFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	rc, err := NewRedisCacheFromURL("redis://"+mr.Addr()+"/0", DefaultConfig())
	require.NoError(t, err)
	defer rc.Close()
	assert.NoError(t, rc.Ping(context.Background()))

	_, err = NewRedisCacheFromURL("not-a-url", DefaultConfig())
	assert.Error(t, err)
}

var _ Cache = (*RedisCache)(nil)
var _ Cache = (*MemoryCache)(nil)
