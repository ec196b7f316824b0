package store

import (
	"database/sql"
	"fmt"
)

// Settings keys.
const (
	SettingDefaultModel = "defaultModel"
)

// SettingsStore persists small key-value settings.
type SettingsStore struct {
	db       *DB
	fallback map[string]string
}

// NewSettingsStore creates a settings store. Fallback values are returned
// for keys that have never been set.
func NewSettingsStore(db *DB, fallback map[string]string) *SettingsStore {
	if fallback == nil {
		fallback = map[string]string{}
	}
	return &SettingsStore{db: db, fallback: fallback}
}

// Get returns the stored value for key, or its fallback.
func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.sql.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return s.fallback[key], nil
	}
	if err != nil {
		return "", fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, nil
}

// Set stores a value for key, replacing any previous value.
func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.sql.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// DefaultModel returns the configured default model.
func (s *SettingsStore) DefaultModel() (string, error) {
	return s.Get(SettingDefaultModel)
}
