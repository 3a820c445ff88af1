package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisBackend_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newMiniRedis(t)
	b := NewRedisBackend(rdb, time.Hour)

	require.NoError(t, b.Probe(ctx))

	_, err := b.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set(ctx, "k", []byte("payload")))
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
	assert.Equal(t, time.Hour, mr.TTL("k"))

	require.NoError(t, b.Delete(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestRedisBackend_ThroughStore(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newMiniRedis(t)
	s := openStore(t, Options{Namespace: "drill"}, NewRedisBackend(rdb, 0))

	in := snapshot{Index: 1, Answers: map[string]int{"q": 3}}
	require.NoError(t, s.Save(ctx, "session", in, SaveOptions{Persistent: true, Immediate: true}))
	assert.True(t, mr.Exists("drill-session"))

	out := LoadAs(ctx, s, "session", snapshot{}, LoadOptions{Persistent: true})
	assert.Equal(t, in, out)
}

func TestRedisBackend_UnreachableIsDisabled(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	mr.Close()

	s := Open(context.Background(), Options{}, zerolog.Nop(), NewRedisBackend(rdb, 0), NewMemoryBackend(0))
	defer s.Close(context.Background())

	assert.Equal(t, []string{"redis"}, s.Disabled())
	assert.Equal(t, []string{"memory"}, s.Backends())
}
