package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readme = "https://raw.githubusercontent.com/octo/docs/main/README.md"

func TestEntry_Lifecycle(t *testing.T) {
	tests := []struct {
		name                 string
		age                  time.Duration
		fresh, stale, tooOld bool
	}{
		{"fresh", 0, true, false, false},
		{"stale", 2 * time.Minute, false, true, false},
		{"too old", 20 * time.Minute, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entry{StoredAt: time.Now().Add(-tt.age), TTL: time.Minute, StaleTime: 10 * time.Minute}
			assert.Equal(t, tt.fresh, e.IsFresh())
			assert.Equal(t, tt.stale, e.IsStale())
			assert.Equal(t, tt.tooOld, e.IsTooOld())
		})
	}
}

func TestEntry_Touched(t *testing.T) {
	e := &Entry{URL: readme, StoredAt: time.Now().Add(-time.Hour), TTL: time.Minute}
	touched := e.Touched()
	assert.True(t, touched.IsFresh())
	assert.False(t, e.IsFresh(), "original is unchanged")
}

func TestMemoryCache_GetSet(t *testing.T) {
	mc := NewMemoryCache(DefaultConfig())
	defer mc.Close()
	ctx := context.Background()

	got, err := mc.Get(ctx, readme)
	require.NoError(t, err)
	assert.Nil(t, got)

	entry := &Entry{
		URL:         readme,
		StatusCode:  200,
		Headers:     map[string][]string{"Content-Type": {"text/plain"}},
		Body:        []byte("# Docs"),
		ContentType: "text/plain",
	}
	require.NoError(t, mc.Set(ctx, entry))
	assert.Equal(t, DefaultConfig().TTL, entry.TTL, "defaults are stamped on set")
	assert.False(t, entry.StoredAt.IsZero())

	got, err = mc.Get(ctx, readme)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "# Docs", string(got.Body))
	assert.True(t, got.IsFresh())

	got.Body[0] = 'X'
	got.Headers["Content-Type"][0] = "text/html"
	again, err := mc.Get(ctx, readme)
	require.NoError(t, err)
	assert.Equal(t, "# Docs", string(again.Body), "returned entries are copies")
	assert.Equal(t, "text/plain", again.Headers["Content-Type"][0])
}

func TestMemoryCache_TooOldIsEvicted(t *testing.T) {
	mc := NewMemoryCache(DefaultConfig())
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, &Entry{
		URL:       readme,
		StoredAt:  time.Now().Add(-time.Hour),
		TTL:       time.Second,
		StaleTime: time.Second,
	}))

	got, err := mc.Get(ctx, readme)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, mc.Len())
}

func TestMemoryCache_DeleteClear(t *testing.T) {
	mc := NewMemoryCache(DefaultConfig())
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, &Entry{URL: readme}))
	require.NoError(t, mc.Set(ctx, &Entry{URL: readme + "?x"}))
	require.NoError(t, mc.Delete(ctx, readme))
	assert.Equal(t, 1, mc.Len())

	require.NoError(t, mc.Clear(ctx))
	assert.Zero(t, mc.Len())
}

func TestMemoryCache_Cleanup(t *testing.T) {
	mc := NewMemoryCache(Config{CleanupInterval: 10 * time.Millisecond})
	defer mc.Close()

	require.NoError(t, mc.Set(context.Background(), &Entry{
		URL:       readme,
		StoredAt:  time.Now().Add(-time.Hour),
		TTL:       time.Second,
		StaleTime: time.Second,
	}))

	assert.Eventually(t, func() bool { return mc.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	mc := NewMemoryCache(DefaultConfig())
	assert.NoError(t, mc.Close())
	assert.NoError(t, mc.Close())
}
