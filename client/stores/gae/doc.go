//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore credential storage for the
// monexa client. It supports multi-tenancy through Datastore namespaces.
//
// # Datastore Kinds
//
//   - CredentialProfile: parent entity, one per profile (never written itself)
//   - CredentialEntry: one entry of the credential record, child of its profile
//
// Entries of a profile share an entity group, so multi-key writes run in a
// single transaction.
//
// # Usage
//
//	dsClient, _ := datastore.NewClient(ctx, projectID)
//	store := client.NewCredentialStore(gae.NewStorage(dsClient, "", "default"))
package gae
