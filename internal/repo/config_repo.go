package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuidamed/backend/internal/model"
)

// ConfigRepo defines the interface for the generic key-value config store
type ConfigRepo interface {
	Get(ctx context.Context, typ string) (model.ConfigEntry, error)
	Set(ctx context.Context, typ, value string) error
}

type configRepo struct {
	db *sql.DB
}

// NewConfigRepo creates a new ConfigRepo instance
func NewConfigRepo(db *sql.DB) ConfigRepo {
	return &configRepo{db: db}
}

func (r *configRepo) Get(ctx context.Context, typ string) (model.ConfigEntry, error) {
	var entry model.ConfigEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT type, value, updated_at FROM app_config WHERE type = $1
	`, typ).Scan(&entry.Type, &entry.Value, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ConfigEntry{}, ErrNotFound
		}
		return model.ConfigEntry{}, fmt.Errorf("query config: %w", err)
	}
	return entry, nil
}

// Set upserts the value for a type tag and refreshes updated_at.
func (r *configRepo) Set(ctx context.Context, typ, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_config (type, value)
		VALUES ($1, $2)
		ON CONFLICT (type) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, typ, value)
	if err != nil {
		return fmt.Errorf("upsert config: %w", err)
	}
	return nil
}
