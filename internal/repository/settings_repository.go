package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qa-reports-api/internal/models"
)

// SettingsRepository persists integration credentials and feature toggles.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// List returns every stored setting.
func (r *SettingsRepository) List(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	if err := r.db.SelectContext(ctx, &settings, `SELECT key, value, type, updated_by, updated_at FROM settings ORDER BY key ASC`); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// Get fetches a single setting. Returns sql.ErrNoRows when unset.
func (r *SettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := r.db.GetContext(ctx, &setting, `SELECT key, value, type, updated_by, updated_at FROM settings WHERE key = $1`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return &setting, nil
}

// BulkUpsert writes all settings in one transaction.
func (r *SettingsRepository) BulkUpsert(ctx context.Context, settings []models.Setting) error {
	if len(settings) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO settings (key, value, type, updated_by, updated_at)
VALUES (:key, :value, :type, :updated_by, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range settings {
		settings[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, settings[i]); err != nil {
			return fmt.Errorf("upsert setting %s: %w", settings[i].Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings tx: %w", err)
	}
	return nil
}
