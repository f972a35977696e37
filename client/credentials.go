// Package client provides client-side authentication utilities for monexa.
// It includes credential storage, automatic token renewal, and HTTP client helpers.
package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Storage keys for the persisted credential record
const (
	KeyAccessToken           = "accessToken"
	KeyAccessTokenExpiresAt  = "accessTokenExpiresAt"
	KeyRefreshToken          = "refreshToken"
	KeyRefreshTokenExpiresAt = "refreshTokenExpiresAt"
	KeyUser                  = "user"
)

// AllKeys lists every key the credential store writes
var AllKeys = []string{
	KeyAccessToken,
	KeyAccessTokenExpiresAt,
	KeyRefreshToken,
	KeyRefreshTokenExpiresAt,
	KeyUser,
}

// DefaultRefreshThreshold is how long before expiry the access token is renewed
const DefaultRefreshThreshold = 24 * time.Hour

// UserProfile is the signed-in user as returned by the API
type UserProfile struct {
	ID        uint64     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Storage is a string key/value backend for the credential record.
// Multi-key writes and removals must be atomic from the caller's point of view.
type Storage interface {
	// GetItem returns the value for key and whether it was present
	GetItem(key string) (string, bool, error)

	// SetItems writes all items in one operation
	SetItems(items map[string]string) error

	// RemoveItems deletes the given keys. Missing keys are not an error.
	RemoveItems(keys ...string) error
}

// CredentialStore persists the access/refresh token pair and the user profile
// on top of a Storage backend.
type CredentialStore struct {
	storage Storage
	logger  *zap.Logger
	now     func() time.Time

	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(*UserProfile)
}

// StoreOption configures a CredentialStore
type StoreOption func(*CredentialStore)

// WithStoreLogger sets the logger used to report storage failures
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *CredentialStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source (for tests)
func WithClock(now func() time.Time) StoreOption {
	return func(s *CredentialStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewCredentialStore creates a credential store over the given storage.
// A nil storage falls back to an in-memory one.
func NewCredentialStore(storage Storage, opts ...StoreOption) *CredentialStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	s := &CredentialStore{
		storage:     storage,
		logger:      zap.NewNop(),
		now:         time.Now,
		subscribers: make(map[int]func(*UserProfile)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetTokens overwrites both token pairs. No ordering check is made on the expiries.
func (s *CredentialStore) SetTokens(accessToken string, accessTokenExpiresAt time.Time, refreshToken string, refreshTokenExpiresAt time.Time) error {
	return s.storage.SetItems(map[string]string{
		KeyAccessToken:           accessToken,
		KeyAccessTokenExpiresAt:  formatTime(accessTokenExpiresAt),
		KeyRefreshToken:          refreshToken,
		KeyRefreshTokenExpiresAt: formatTime(refreshTokenExpiresAt),
	})
}

// SetAccessToken updates only the access token pair (used after a renewal)
func (s *CredentialStore) SetAccessToken(accessToken string, accessTokenExpiresAt time.Time) error {
	return s.storage.SetItems(map[string]string{
		KeyAccessToken:          accessToken,
		KeyAccessTokenExpiresAt: formatTime(accessTokenExpiresAt),
	})
}

// AccessToken returns the stored access token or "" if absent
func (s *CredentialStore) AccessToken() string {
	v, _ := s.get(KeyAccessToken)
	return v
}

// RefreshToken returns the stored refresh token or "" if absent
func (s *CredentialStore) RefreshToken() string {
	v, _ := s.get(KeyRefreshToken)
	return v
}

// AccessTokenExpiry returns the access token expiry, if one is recorded
func (s *CredentialStore) AccessTokenExpiry() (time.Time, bool) {
	return s.getTime(KeyAccessTokenExpiresAt)
}

// RefreshTokenExpiry returns the refresh token expiry, if one is recorded
func (s *CredentialStore) RefreshTokenExpiry() (time.Time, bool) {
	return s.getTime(KeyRefreshTokenExpiresAt)
}

// IsAccessTokenExpiringSoon returns true if the access token expires within
// threshold. An unknown expiry counts as expiring.
func (s *CredentialStore) IsAccessTokenExpiringSoon(threshold time.Duration) bool {
	expiresAt, ok := s.AccessTokenExpiry()
	if !ok {
		return true
	}
	return expiresAt.Sub(s.now()) < threshold
}

// IsAccessTokenExpired returns true if the access token has expired or has no expiry
func (s *CredentialStore) IsAccessTokenExpired() bool {
	expiresAt, ok := s.AccessTokenExpiry()
	if !ok {
		return true
	}
	return !s.now().Before(expiresAt)
}

// IsRefreshTokenExpired returns true if the refresh token has expired or has no expiry
func (s *CredentialStore) IsRefreshTokenExpired() bool {
	expiresAt, ok := s.RefreshTokenExpiry()
	if !ok {
		return true
	}
	return !s.now().Before(expiresAt)
}

// IsAuthenticated returns true if both tokens are present and the refresh
// token is still live. An expired access token does not matter here since
// the dispatcher renews it.
func (s *CredentialStore) IsAuthenticated() bool {
	return s.AccessToken() != "" && s.RefreshToken() != "" && !s.IsRefreshTokenExpired()
}

// SetUser persists the profile and notifies subscribers
func (s *CredentialStore) SetUser(user *UserProfile) error {
	if user == nil {
		if err := s.storage.RemoveItems(KeyUser); err != nil {
			return err
		}
		s.notify(nil)
		return nil
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.storage.SetItems(map[string]string{KeyUser: string(data)}); err != nil {
		return err
	}
	s.notify(user)
	return nil
}

// User returns the stored profile or nil
func (s *CredentialStore) User() *UserProfile {
	v, ok := s.get(KeyUser)
	if !ok || v == "" {
		return nil
	}
	var user UserProfile
	if err := json.Unmarshal([]byte(v), &user); err != nil {
		s.logger.Warn("discarding unreadable stored user", zap.Error(err))
		return nil
	}
	return &user
}

// ClearTokens removes all five persisted entries
func (s *CredentialStore) ClearTokens() error {
	hadUser := s.User() != nil
	if err := s.storage.RemoveItems(AllKeys...); err != nil {
		return err
	}
	if hadUser {
		s.notify(nil)
	}
	return nil
}

// Subscribe registers fn to be called whenever the stored user changes.
// fn receives nil when the user is cleared. The returned func unsubscribes.
func (s *CredentialStore) Subscribe(fn func(*UserProfile)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *CredentialStore) notify(user *UserProfile) {
	s.mu.Lock()
	fns := make([]func(*UserProfile), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

func (s *CredentialStore) get(key string) (string, bool) {
	v, ok, err := s.storage.GetItem(key)
	if err != nil {
		s.logger.Error("credential storage read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}

func (s *CredentialStore) getTime(key string) (time.Time, bool) {
	v, ok := s.get(key)
	if !ok || v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		s.logger.Warn("discarding unreadable expiry", zap.String("key", key), zap.Error(err))
		return time.Time{}, false
	}
	return t, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
