package identity

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStorage(t *testing.T, mr *miniredis.Miniredis, scope string) *RedisStorage {
	t.Helper()
	s, err := NewRedisStorage(context.Background(), "redis://"+mr.Addr(), scope)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStorageRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store := Open(ctx, newRedisStorage(t, mr, "hotel.example"))
	require.False(t, store.Degraded())

	id := store.GetOrCreateSessionID(ctx)
	store.GrantConsent(ctx)

	got, err := mr.Get("nocturn:hotel.example:" + KeySession)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	consent, err := mr.Get("nocturn:hotel.example:" + KeyConsent)
	require.NoError(t, err)
	assert.Equal(t, "true", consent)
	assert.Zero(t, mr.TTL("nocturn:hotel.example:"+KeySession))

	reloaded := Open(ctx, newRedisStorage(t, mr, "hotel.example"))
	assert.Equal(t, id, reloaded.GetOrCreateSessionID(ctx))
	assert.True(t, reloaded.HasConsent(ctx))
}

func TestRedisStorageMissingKey(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newRedisStorage(t, mr, "hotel.example")

	v, ok, err := s.Get(context.Background(), KeySession)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestRedisStorageScopesAreIsolated(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	a := newRedisStorage(t, mr, "a.example")
	b := newRedisStorage(t, mr, "b.example")
	require.NoError(t, a.Set(ctx, KeyConsent, "true"))

	_, ok, err := b.Get(ctx, KeyConsent)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("nocturn:a.example:"+KeyConsent))
	assert.False(t, mr.Exists("nocturn:b.example:"+KeyConsent))
}

func TestRedisStorageDegradesWhenServerFails(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store := Open(ctx, newRedisStorage(t, mr, "hotel.example"))
	id := store.GetOrCreateSessionID(ctx)

	mr.SetError("LOADING server is reloading")

	assert.Equal(t, id, store.GetOrCreateSessionID(ctx))
	assert.True(t, store.Degraded())
}

func TestRedisStorageRejectsBadURL(t *testing.T) {
	_, err := NewRedisStorage(context.Background(), "not a url", "scope")
	require.Error(t, err)
}
