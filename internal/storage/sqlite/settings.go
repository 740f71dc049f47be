package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/voxdeck/voxdeck/pkg/logger"
)

// Well-known settings keys, mirroring the browser front-end's local storage
const (
	SettingLanguagePreference = "language_preference"
	SettingThemePreference    = "theme_preference"
)

// SettingsStorage persists user preferences as key/value pairs
type SettingsStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSettingsStorage creates a new settings storage sharing an existing
// database handle
func NewSettingsStorage(db *sql.DB, log *logger.Logger) (*SettingsStorage, error) {
	storage := &SettingsStorage{
		db:     db,
		logger: log.Named("sqlite-settings"),
	}

	if err := storage.initDB(); err != nil {
		return nil, err
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *SettingsStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}
	return nil
}

// GetSetting returns the stored value for a key, or an empty string when
// the key has never been set
func (s *SettingsStorage) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a value for a key, replacing any previous value
func (s *SettingsStorage) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}

	s.logger.Debug("Stored setting", String("key", key))
	return nil
}

// GetAllSettings returns every stored setting
func (s *SettingsStorage) GetAllSettings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings: %w", err)
	}

	return settings, nil
}
