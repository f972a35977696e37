//go:build !wasm
// +build !wasm

package gorm

import "time"

// CredentialEntryModel is the GORM model for one credential record entry
type CredentialEntryModel struct {
	Profile   string    `gorm:"primaryKey;size:128"`
	EntryKey  string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName pins the table name regardless of naming strategy
func (CredentialEntryModel) TableName() string {
	return "credential_entries"
}
