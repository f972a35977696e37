package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/monexa/client"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

func TestStorage_SetGetRemove(t *testing.T) {
	rdb, mr := newTestClient(t)
	s := NewStorage(rdb, "default")

	_, ok, err := s.GetItem(client.KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItems(map[string]string{
		client.KeyAccessToken:  "a1",
		client.KeyRefreshToken: "r1",
	}))
	assert.Equal(t, "a1", mr.HGet("monexa:credentials:default", client.KeyAccessToken))

	v, ok, err := s.GetItem(client.KeyRefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r1", v)

	require.NoError(t, s.RemoveItems(client.AllKeys...))
	assert.False(t, mr.Exists("monexa:credentials:default"))
}

func TestStorage_TTL(t *testing.T) {
	rdb, mr := newTestClient(t)
	s := NewStorage(rdb, "p", WithTTL(time.Hour), WithKey("custom"))

	require.NoError(t, s.SetItems(map[string]string{client.KeyAccessToken: "a"}))
	assert.Equal(t, time.Hour, mr.TTL("custom"))

	mr.FastForward(2 * time.Hour)
	_, ok, err := s.GetItem(client.KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_BacksCredentialStore(t *testing.T) {
	rdb, _ := newTestClient(t)
	store := client.NewCredentialStore(NewStorage(rdb, "default").WithContext(context.Background()))

	exp := time.Now().Add(time.Hour)
	require.NoError(t, store.SetTokens("a", exp, "r", exp.Add(time.Hour)))
	assert.True(t, store.IsAuthenticated())

	// a second process sees the same record
	other := client.NewCredentialStore(NewStorage(rdb, "default"))
	assert.Equal(t, "a", other.AccessToken())

	require.NoError(t, other.ClearTokens())
	assert.False(t, store.IsAuthenticated())
}

func TestStorage_ReadError(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: time.Second})
	defer rdb.Close()

	_, _, err := NewStorage(rdb, "default").GetItem(client.KeyAccessToken)
	assert.Error(t, err)
}
