//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
)

// Kind constants for Datastore entities
const (
	KindCredentialProfile = "CredentialProfile"
	KindCredentialEntry   = "CredentialEntry"
)

// Storage implements client.Storage using Google Cloud Datastore
type Storage struct {
	client    *datastore.Client
	namespace string
	profile   string
	ctx       context.Context
}

// NewStorage creates a new Datastore-backed Storage
func NewStorage(client *datastore.Client, namespace string, profile string) *Storage {
	return &Storage{
		client:    client,
		namespace: namespace,
		profile:   profile,
		ctx:       context.Background(),
	}
}

// WithContext returns a copy of the storage with the given context
func (s *Storage) WithContext(ctx context.Context) *Storage {
	return &Storage{
		client:    s.client,
		namespace: s.namespace,
		profile:   s.profile,
		ctx:       ctx,
	}
}

// profileKey is the entity group root for this storage's entries
func (s *Storage) profileKey() *datastore.Key {
	key := datastore.NameKey(KindCredentialProfile, s.profile, nil)
	key.Namespace = s.namespace
	return key
}

func (s *Storage) entryKey(name string) *datastore.Key {
	key := datastore.NameKey(KindCredentialEntry, name, s.profileKey())
	key.Namespace = s.namespace
	return key
}

// GetItem implements client.Storage
func (s *Storage) GetItem(key string) (string, bool, error) {
	var entity CredentialEntryEntity
	if err := s.client.Get(s.ctx, s.entryKey(key), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return entity.Value, true, nil
}

// SetItems writes all items in one transaction
func (s *Storage) SetItems(items map[string]string) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now()
	keys := make([]*datastore.Key, 0, len(items))
	entities := make([]*CredentialEntryEntity, 0, len(items))
	for k, v := range items {
		key := s.entryKey(k)
		keys = append(keys, key)
		entities = append(entities, &CredentialEntryEntity{Key: key, Value: v, UpdatedAt: now})
	}

	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		_, err := tx.PutMulti(keys, entities)
		return err
	})
	return err
}

// RemoveItems deletes the given entries in one transaction
func (s *Storage) RemoveItems(names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]*datastore.Key, len(names))
	for i, n := range names {
		keys[i] = s.entryKey(n)
	}

	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		return tx.DeleteMulti(keys)
	})
	return err
}
