package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/cuidamed/backend/internal/model"
)

// FrontRepo defines the interface for front-end display settings and the logo store
type FrontRepo interface {
	ListSettings(ctx context.Context) ([]model.FrontSetting, error)
	GetSetting(ctx context.Context, typ string) (model.FrontSetting, error)
	UpsertSetting(ctx context.Context, typ, value string) error
	DeleteSetting(ctx context.Context, typ string) error

	GetLogo(ctx context.Context) (model.LogoConfig, error)
	SetLogo(ctx context.Context, logo string, appendHistory bool) (model.LogoConfig, error)
	ActivateLogo(ctx context.Context, logo string) (model.LogoConfig, error)
}

type frontRepo struct {
	db *sql.DB
}

// NewFrontRepo creates a new FrontRepo instance
func NewFrontRepo(db *sql.DB) FrontRepo {
	return &frontRepo{db: db}
}

func (r *frontRepo) ListSettings(ctx context.Context) ([]model.FrontSetting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT type, value, updated_at FROM front_settings ORDER BY type
	`)
	if err != nil {
		return nil, fmt.Errorf("query front settings: %w", err)
	}
	defer rows.Close()

	var settings []model.FrontSetting
	for rows.Next() {
		var s model.FrontSetting
		if err := rows.Scan(&s.Type, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan front setting: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *frontRepo) GetSetting(ctx context.Context, typ string) (model.FrontSetting, error) {
	var s model.FrontSetting
	err := r.db.QueryRowContext(ctx, `
		SELECT type, value, updated_at FROM front_settings WHERE type = $1
	`, typ).Scan(&s.Type, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.FrontSetting{}, ErrNotFound
		}
		return model.FrontSetting{}, fmt.Errorf("query front setting: %w", err)
	}
	return s, nil
}

func (r *frontRepo) UpsertSetting(ctx context.Context, typ, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO front_settings (type, value)
		VALUES ($1, $2)
		ON CONFLICT (type) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, typ, value)
	if err != nil {
		return fmt.Errorf("upsert front setting: %w", err)
	}
	return nil
}

func (r *frontRepo) DeleteSetting(ctx context.Context, typ string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM front_settings WHERE type = $1`, typ)
	if err != nil {
		return fmt.Errorf("delete front setting: %w", err)
	}
	return nil
}

// GetLogo returns the singleton logo row (current logo plus full history).
func (r *frontRepo) GetLogo(ctx context.Context) (model.LogoConfig, error) {
	var l model.LogoConfig
	err := r.db.QueryRowContext(ctx, `
		SELECT current_logo, logo_history, updated_at FROM logo_config WHERE id = 1
	`).Scan(&l.CurrentLogo, pq.Array(&l.LogoHistory), &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LogoConfig{}, ErrNotFound
		}
		return model.LogoConfig{}, fmt.Errorf("query logo: %w", err)
	}
	return l, nil
}

// SetLogo updates the current logo; with appendHistory it also records the
// value in the history list (duplicates allowed; activation deduplicates via
// ActivateLogo instead).
func (r *frontRepo) SetLogo(ctx context.Context, logo string, appendHistory bool) (model.LogoConfig, error) {
	query := `
		UPDATE logo_config
		SET current_logo = $1, updated_at = now()
		WHERE id = 1
		RETURNING current_logo, logo_history, updated_at
	`
	if appendHistory {
		query = `
			UPDATE logo_config
			SET current_logo = $1,
			    logo_history = array_append(logo_history, $1),
			    updated_at = now()
			WHERE id = 1
			RETURNING current_logo, logo_history, updated_at
		`
	}

	var l model.LogoConfig
	err := r.db.QueryRowContext(ctx, query, logo).
		Scan(&l.CurrentLogo, pq.Array(&l.LogoHistory), &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LogoConfig{}, ErrNotFound
		}
		return model.LogoConfig{}, fmt.Errorf("update logo: %w", err)
	}
	return l, nil
}

// ActivateLogo makes a logo current and ensures it appears in the history
// exactly once.
func (r *frontRepo) ActivateLogo(ctx context.Context, logo string) (model.LogoConfig, error) {
	var l model.LogoConfig
	err := r.db.QueryRowContext(ctx, `
		UPDATE logo_config
		SET current_logo = $1,
		    logo_history = CASE
		        WHEN $1 = ANY(logo_history) THEN logo_history
		        ELSE array_append(logo_history, $1)
		    END,
		    updated_at = now()
		WHERE id = 1
		RETURNING current_logo, logo_history, updated_at
	`, logo).Scan(&l.CurrentLogo, pq.Array(&l.LogoHistory), &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LogoConfig{}, ErrNotFound
		}
		return model.LogoConfig{}, fmt.Errorf("activate logo: %w", err)
	}
	return l, nil
}
