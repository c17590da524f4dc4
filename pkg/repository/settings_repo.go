package repository

import (
	"context"
	"database/sql"
	"errors"
)

// SettingsRepository handles key/value site settings grouped by category.
// Maintenance mode lives under the "system" category.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves a single setting value. Returns ok=false when the key is
// absent, which callers treat as "use the default".
func (r *SettingsRepository) Get(ctx context.Context, category, key string) (string, bool, error) {
	query := `
		SELECT value
		FROM site_settings
		WHERE category = $1 AND key = $2
	`
	var value string
	err := r.db.QueryRowContext(ctx, query, category, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// GetAll retrieves all settings under a category.
func (r *SettingsRepository) GetAll(ctx context.Context, category string) (map[string]string, error) {
	query := `
		SELECT key, value
		FROM site_settings
		WHERE category = $1
	`
	rows, err := r.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// Set upserts a setting. The site_settings trigger emits a
// site_settings_changed notification on every write.
func (r *SettingsRepository) Set(ctx context.Context, category, key, value string) error {
	query := `
		INSERT INTO site_settings (category, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (category, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, category, key, value)
	return err
}
