package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func TestRedisSetGet(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	defer client.Close()
	store := NewRedis(client, WithPrefix("test"))
	defer store.Close()

	found, val, err := store.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)

	assert.NoError(t, store.Set(ctx, "key", []byte("value"), time.Minute))
	found, val, err = store.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("value"), val)
}

func TestRedisPrefix(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	defer client.Close()

	a := NewRedis(client, WithPrefix("a"))
	b := NewRedis(client, WithPrefix("b"))

	assert.NoError(t, a.Set(ctx, "key", []byte("value"), time.Minute))
	found, _, err := b.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
	found, _, err = a.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestRedisDelete(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	defer client.Close()
	store := NewRedis(client)
	defer store.Close()

	assert.NoError(t, store.Set(ctx, "key", []byte("value"), time.Minute))
	found, err := store.Delete(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)

	found, err = store.Delete(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}
