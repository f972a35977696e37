// Package scs keeps the credential record in a server-side scs session.
// This is for web backends that call the Monexa API on behalf of a browser
// user: each request builds a CredentialStore over its own session.
package scs

import (
	"context"

	"github.com/alexedwards/scs/v2"
)

// DefaultPrefix namespaces credential entries inside the session
const DefaultPrefix = "monexa."

// Storage implements client.Storage over the session loaded into ctx by
// SessionManager.LoadAndSave. Writes reach the session store when the
// request completes.
type Storage struct {
	sm     *scs.SessionManager
	ctx    context.Context
	prefix string
}

// NewStorage binds the session of ctx
func NewStorage(sm *scs.SessionManager, ctx context.Context) *Storage {
	return &Storage{sm: sm, ctx: ctx, prefix: DefaultPrefix}
}

// WithPrefix returns a copy that stores entries under prefix
func (s *Storage) WithPrefix(prefix string) *Storage {
	return &Storage{sm: s.sm, ctx: s.ctx, prefix: prefix}
}

// GetItem implements client.Storage
func (s *Storage) GetItem(key string) (string, bool, error) {
	k := s.prefix + key
	if !s.sm.Exists(s.ctx, k) {
		return "", false, nil
	}
	return s.sm.GetString(s.ctx, k), true, nil
}

// SetItems puts every item; the session is written once at the end of the request
func (s *Storage) SetItems(items map[string]string) error {
	for k, v := range items {
		s.sm.Put(s.ctx, s.prefix+k, v)
	}
	return nil
}

// RemoveItems implements client.Storage
func (s *Storage) RemoveItems(keys ...string) error {
	for _, k := range keys {
		s.sm.Remove(s.ctx, s.prefix+k)
	}
	return nil
}

// RenewToken rotates the session ID, as recommended after a privilege change
// such as login
func (s *Storage) RenewToken() error {
	return s.sm.RenewToken(s.ctx)
}
