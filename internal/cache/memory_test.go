package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Minute)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "workshops:/a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "workshops:/b", []byte("2"), 10*time.Minute))

	got, err := c.Get(ctx, "workshops:/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "workshops:/a")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 1, c.RemoveExpired())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	require.NoError(t, c.Set(ctx, "blog:/api/blog/published", []byte("x"), 0))
	require.NoError(t, c.Set(ctx, "blog:/api/blog/categories", []byte("y"), 0))
	require.NoError(t, c.Set(ctx, "team:/api/team/active", []byte("z"), 0))

	require.NoError(t, c.DeleteByPrefix(ctx, "blog:"))
	_, err := c.Get(ctx, "blog:/api/blog/published")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "team:/api/team/active")
	assert.NoError(t, err)

	require.NoError(t, c.Close())
	_, err = c.Get(ctx, "team:/api/team/active")
	assert.ErrorIs(t, err, ErrCacheClosed)
}

func TestNewWithoutRedisIsMemory(t *testing.T) {
	c, err := New("", "fablab:", time.Second)
	require.NoError(t, err)
	_, ok := c.(Sweeper)
	assert.True(t, ok)
}
