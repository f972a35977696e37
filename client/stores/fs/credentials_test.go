package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/panyam/monexa/client"
)

func TestFSStorage_GetSetItems(t *testing.T) {
	// Use temp directory
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "credentials.json")

	store, err := NewFSStorage(path, "", "http://localhost:9000/api/v1")
	if err != nil {
		t.Fatalf("NewFSStorage() error = %v", err)
	}

	// Initially empty
	if _, ok, err := store.GetItem(client.KeyAccessToken); err != nil || ok {
		t.Fatalf("GetItem() = %v, %v, want absent", ok, err)
	}

	err = store.SetItems(map[string]string{
		client.KeyAccessToken:  "test-token",
		client.KeyRefreshToken: "refresh-token",
	})
	if err != nil {
		t.Fatalf("SetItems() error = %v", err)
	}

	v, ok, err := store.GetItem(client.KeyAccessToken)
	if err != nil || !ok || v != "test-token" {
		t.Errorf("GetItem(accessToken) = %v, %v, %v, want test-token", v, ok, err)
	}

	if err := store.RemoveItems(client.KeyAccessToken, "missing"); err != nil {
		t.Fatalf("RemoveItems() error = %v", err)
	}
	if _, ok, _ := store.GetItem(client.KeyAccessToken); ok {
		t.Error("accessToken should be removed")
	}
	if v, _, _ := store.GetItem(client.KeyRefreshToken); v != "refresh-token" {
		t.Errorf("refreshToken = %v, want refresh-token", v)
	}
}

func TestFSStorage_URLNormalization(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	a, _ := NewFSStorage(path, "", "http://localhost:8080/api/v1")
	a.SetItems(map[string]string{client.KeyAccessToken: "token"})

	// Same host, different path reads the same entry
	b, err := NewFSStorage(path, "", "http://localhost:8080/different/path")
	if err != nil {
		t.Fatalf("NewFSStorage() error = %v", err)
	}
	if v, ok, _ := b.GetItem(client.KeyAccessToken); !ok || v != "token" {
		t.Errorf("GetItem() = %v, %v, want token", v, ok)
	}
	if b.Server() != "http://localhost:8080" {
		t.Errorf("Server() = %v, want http://localhost:8080", b.Server())
	}
}

func TestFSStorage_ServersAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	a, _ := NewFSStorage(path, "", "http://localhost:8080")
	a.SetItems(map[string]string{client.KeyAccessToken: "a"})
	b, _ := NewFSStorage(path, "", "http://localhost:9090")
	b.SetItems(map[string]string{client.KeyAccessToken: "b"})

	if len(b.ListServers()) != 2 {
		t.Errorf("len(ListServers()) = %d, want 2", len(b.ListServers()))
	}

	// Clearing every key drops the server entry
	b.RemoveItems(client.AllKeys...)
	if got := b.ListServers(); len(got) != 1 || got[0] != "http://localhost:8080" {
		t.Errorf("ListServers() = %v, want [http://localhost:8080]", got)
	}

	reloaded, _ := NewFSStorage(path, "", "http://localhost:8080")
	if v, _, _ := reloaded.GetItem(client.KeyAccessToken); v != "a" {
		t.Errorf("other server's token = %v, want a", v)
	}
}

func TestFSStorage_PersistsCredentialRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	fs1, err := NewFSStorage(path, "", "http://localhost:9000")
	if err != nil {
		t.Fatalf("NewFSStorage() error = %v", err)
	}
	store1 := client.NewCredentialStore(fs1)
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	store1.SetTokens("persisted-token", expiry, "refresh-token", expiry.Add(24*time.Hour))
	store1.SetUser(&client.UserProfile{ID: 4, Email: "user@example.com"})

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("credentials file not created")
	}

	// Create new store from same file
	fs2, err := NewFSStorage(path, "", "http://localhost:9000")
	if err != nil {
		t.Fatalf("NewFSStorage() error = %v", err)
	}
	store2 := client.NewCredentialStore(fs2)

	if got := store2.AccessToken(); got != "persisted-token" {
		t.Errorf("AccessToken = %v, want persisted-token", got)
	}
	if got, _ := store2.AccessTokenExpiry(); !got.Equal(expiry) {
		t.Errorf("AccessTokenExpiry = %v, want %v", got, expiry)
	}
	if u := store2.User(); u == nil || u.Email != "user@example.com" {
		t.Errorf("User = %+v, want user@example.com", u)
	}
	if !store2.IsAuthenticated() {
		t.Error("reloaded store should be authenticated")
	}
}

func TestFSStorage_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")

	store, err := NewFSStorage(path, "", "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewFSStorage() error = %v", err)
	}
	store.SetItems(map[string]string{client.KeyAccessToken: "token"})

	// Check file permissions (should be 0600)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		t.Errorf("file permissions = %o, want 0600", mode)
	}
}

func TestFSStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	os.WriteFile(path, []byte("{not json"), 0600)

	if _, err := NewFSStorage(path, "", "http://localhost:8080"); err == nil {
		t.Error("NewFSStorage() should fail on a corrupt file")
	}
}

func TestFSStorage_DefaultPath(t *testing.T) {
	// Test with empty path - should use default
	store, err := NewFSStorage("", "testapp", "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewFSStorage() error = %v", err)
	}

	path := store.Path()
	if path == "" {
		t.Error("path should not be empty")
	}

	// Should contain app name in path
	if filepath.Base(filepath.Dir(path)) != "testapp" {
		t.Logf("path = %s (app name dir may vary by platform)", path)
	}
}
