package oauth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, opts ...RedisStoreOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, opts...)
	require.NoError(t, err)
	return store, mr
}

func TestNewRedisStore(t *testing.T) {
	t.Parallel()

	_, err := NewRedisStore(nil)
	assert.Error(t, err)
}

func TestRedisStoreLookup(t *testing.T) {
	t.Parallel()

	t.Run("existing record", func(t *testing.T) {
		t.Parallel()

		store, mr := newTestRedisStore(t)
		require.NoError(t, mr.Set(DefaultRedisKeyPrefix+"c1",
			`{"id":"c1","confidential":true,"credential":{"type":"shared_secret","value":"s3cr3t"}}`))

		client, err := store.Lookup(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, "c1", client.ID)
		assert.True(t, client.Confidential)
		require.NotNil(t, client.Credential)
		assert.Equal(t, CredentialTypeSecret, client.Credential.Type)
	})

	t.Run("record without id falls back to the lookup key", func(t *testing.T) {
		t.Parallel()

		store, mr := newTestRedisStore(t)
		require.NoError(t, mr.Set(DefaultRedisKeyPrefix+"c2", `{"confidential":false}`))

		client, err := store.Lookup(context.Background(), "c2")
		require.NoError(t, err)
		assert.Equal(t, "c2", client.ID)
	})

	t.Run("missing record", func(t *testing.T) {
		t.Parallel()

		store, _ := newTestRedisStore(t)
		_, err := store.Lookup(context.Background(), "absent")
		assert.ErrorIs(t, err, ErrClientNotFound)
	})

	t.Run("malformed record", func(t *testing.T) {
		t.Parallel()

		store, mr := newTestRedisStore(t)
		require.NoError(t, mr.Set(DefaultRedisKeyPrefix+"bad", "{not json"))

		_, err := store.Lookup(context.Background(), "bad")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrClientNotFound)
	})

	t.Run("custom key prefix", func(t *testing.T) {
		t.Parallel()

		store, mr := newTestRedisStore(t, WithRedisKeyPrefix("tenant:"))
		require.NoError(t, mr.Set("tenant:c3", `{"id":"c3"}`))

		client, err := store.Lookup(context.Background(), "c3")
		require.NoError(t, err)
		assert.Equal(t, "c3", client.ID)
	})
}

func TestRedisStoreBreakerOpensOnRepeatedFailures(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t)
	mr.Close()

	// Drive the breaker past its failure threshold.
	for i := 0; i < 6; i++ {
		_, err := store.Lookup(context.Background(), "c1")
		require.Error(t, err)
	}

	_, err := store.Lookup(context.Background(), "c1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClientNotFound)
}
