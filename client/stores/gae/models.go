//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"
)

// CredentialEntryEntity is the Datastore entity for one credential record entry
type CredentialEntryEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Value     string         `datastore:"value,noindex"`
	UpdatedAt time.Time      `datastore:"updated_at"`
}
