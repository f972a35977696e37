//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based credential storage for the monexa client.
// It supports any database that GORM supports (PostgreSQL, MySQL, SQLite, etc.)
// and suits agents that run on several hosts but share one signed-in account.
//
// # Database Schema
//
// The package auto-migrates a single table:
//   - credential_entries: one row per (profile, key) pair of the credential record
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	gormstore.AutoMigrate(db)
//	store := client.NewCredentialStore(gormstore.NewStorage(db, "default"))
package gorm
