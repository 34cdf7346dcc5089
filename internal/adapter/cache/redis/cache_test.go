package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestVacancyCacheFilterNewAndAddMany(t *testing.T) {
	mr, rdb := testRedis(t)
	c := NewVacancyCache(rdb)
	ctx := context.Background()

	fresh, err := c.FilterNew(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, fresh)

	require.NoError(t, c.AddMany(ctx, []string{"a", "c"}))

	fresh, err = c.FilterNew(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, fresh)

	// Entries expire after the TTL and become new again.
	mr.FastForward(vacancyTTL + time.Second)
	fresh, err = c.FilterNew(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, fresh)
}

func TestVacancyCacheEmptyInput(t *testing.T) {
	_, rdb := testRedis(t)
	c := NewVacancyCache(rdb)
	ctx := context.Background()

	fresh, err := c.FilterNew(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.NoError(t, c.AddMany(ctx, nil))
}

func TestOAuthStateStoreTakeIsOneShot(t *testing.T) {
	_, rdb := testRedis(t)
	s := NewOAuthStateStore(rdb)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "state1", "localhost:8080"))

	host, ok, err := s.Take(ctx, "state1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "localhost:8080", host)

	_, ok, err = s.Take(ctx, "state1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOAuthStateStoreExpiry(t *testing.T) {
	mr, rdb := testRedis(t)
	s := NewOAuthStateStore(rdb)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "state1", "h"))
	mr.FastForward(oauthStateTTL + time.Second)
	_, ok, err := s.Take(ctx, "state1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not-a-url")
	assert.Error(t, err)
}
