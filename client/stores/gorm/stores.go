//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutoMigrate runs database migrations for the credential table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CredentialEntryModel{})
}

// Storage implements client.Storage using GORM. Entries are scoped by
// profile so one table can hold several accounts.
type Storage struct {
	db      *gorm.DB
	profile string
	ctx     context.Context
}

// NewStorage creates a GORM-backed Storage for profile
func NewStorage(db *gorm.DB, profile string) *Storage {
	return &Storage{db: db, profile: profile, ctx: context.Background()}
}

// WithContext returns a copy of the storage with the given context
func (s *Storage) WithContext(ctx context.Context) *Storage {
	return &Storage{db: s.db, profile: s.profile, ctx: ctx}
}

// GetItem implements client.Storage
func (s *Storage) GetItem(key string) (string, bool, error) {
	var model CredentialEntryModel
	err := s.db.WithContext(s.ctx).
		Where("profile = ? AND entry_key = ?", s.profile, key).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return model.Value, true, nil
}

// SetItems upserts all items in one transaction
func (s *Storage) SetItems(items map[string]string) error {
	if len(items) == 0 {
		return nil
	}
	models := make([]CredentialEntryModel, 0, len(items))
	for k, v := range items {
		models = append(models, CredentialEntryModel{Profile: s.profile, EntryKey: k, Value: v})
	}
	return s.db.WithContext(s.ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile"}, {Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&models).Error
	})
}

// RemoveItems deletes the given entries of the profile
func (s *Storage) RemoveItems(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(s.ctx).
		Where("profile = ? AND entry_key IN ?", s.profile, keys).
		Delete(&CredentialEntryModel{}).Error
}

// Profiles lists every profile with at least one stored entry
func (s *Storage) Profiles() ([]string, error) {
	var profiles []string
	err := s.db.WithContext(s.ctx).
		Model(&CredentialEntryModel{}).
		Distinct("profile").
		Order("profile").
		Pluck("profile", &profiles).Error
	return profiles, err
}
