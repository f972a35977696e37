//go:build !wasm
// +build !wasm

package gorm

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/panyam/monexa/client"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "credentials.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestStorage_SetGetRemove(t *testing.T) {
	s := NewStorage(newTestDB(t), "default")

	_, ok, err := s.GetItem(client.KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItems(map[string]string{
		client.KeyAccessToken:  "a1",
		client.KeyRefreshToken: "r1",
	}))
	v, ok, err := s.GetItem(client.KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a1", v)

	// overwrite in place
	require.NoError(t, s.SetItems(map[string]string{client.KeyAccessToken: "a2"}))
	v, _, _ = s.GetItem(client.KeyAccessToken)
	assert.Equal(t, "a2", v)

	require.NoError(t, s.RemoveItems(client.KeyAccessToken, "missing"))
	_, ok, _ = s.GetItem(client.KeyAccessToken)
	assert.False(t, ok)
	v, _, _ = s.GetItem(client.KeyRefreshToken)
	assert.Equal(t, "r1", v)
}

func TestStorage_ProfilesAreIsolated(t *testing.T) {
	db := newTestDB(t)
	work := NewStorage(db, "work")
	home := NewStorage(db, "home")

	require.NoError(t, work.SetItems(map[string]string{client.KeyAccessToken: "w"}))
	require.NoError(t, home.SetItems(map[string]string{client.KeyAccessToken: "h"}))
	require.NoError(t, home.RemoveItems(client.AllKeys...))

	v, ok, _ := work.GetItem(client.KeyAccessToken)
	assert.True(t, ok)
	assert.Equal(t, "w", v)

	profiles, err := work.Profiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, profiles)
}

func TestStorage_BacksCredentialStore(t *testing.T) {
	store := client.NewCredentialStore(NewStorage(newTestDB(t), "default"))
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	require.NoError(t, store.SetTokens("a", exp, "r", exp.Add(time.Hour)))
	require.NoError(t, store.SetUser(&client.UserProfile{ID: 9, Email: "g@example.com"}))
	assert.True(t, store.IsAuthenticated())
	got, ok := store.AccessTokenExpiry()
	assert.True(t, ok)
	assert.True(t, got.Equal(exp))

	require.NoError(t, store.ClearTokens())
	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.User())
}
