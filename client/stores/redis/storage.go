// Package redis keeps the credential record in a Redis hash, one hash per
// profile. Useful when several agent processes share one signed-in account.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix is prepended to the profile name to form the hash key
const DefaultKeyPrefix = "monexa:credentials:"

// Storage implements client.Storage on a Redis hash
type Storage struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	ctx    context.Context
}

// StorageOption configures a Storage
type StorageOption func(*Storage)

// WithTTL expires the whole hash ttl after the last write
func WithTTL(ttl time.Duration) StorageOption {
	return func(s *Storage) {
		s.ttl = ttl
	}
}

// WithKey overrides the hash key
func WithKey(key string) StorageOption {
	return func(s *Storage) {
		s.key = key
	}
}

// NewStorage creates a Redis-backed Storage for profile
func NewStorage(client *redis.Client, profile string, opts ...StorageOption) *Storage {
	s := &Storage{
		client: client,
		key:    DefaultKeyPrefix + profile,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithContext returns a copy of the storage with the given context
func (s *Storage) WithContext(ctx context.Context) *Storage {
	out := *s
	out.ctx = ctx
	return &out
}

// Key returns the hash key holding the credential record
func (s *Storage) Key() string {
	return s.key
}

// GetItem implements client.Storage
func (s *Storage) GetItem(field string) (string, bool, error) {
	v, err := s.client.HGet(s.ctx, s.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", field, err)
	}
	return v, true, nil
}

// SetItems writes all fields in one MULTI/EXEC
func (s *Storage) SetItems(items map[string]string) error {
	if len(items) == 0 {
		return nil
	}
	values := make(map[string]any, len(items))
	for k, v := range items {
		values[k] = v
	}
	_, err := s.client.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(s.ctx, s.key, values)
		if s.ttl > 0 {
			pipe.Expire(s.ctx, s.key, s.ttl)
		}
		return nil
	})
	return err
}

// RemoveItems deletes the given fields from the hash
func (s *Storage) RemoveItems(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.client.HDel(s.ctx, s.key, fields...).Err()
}
