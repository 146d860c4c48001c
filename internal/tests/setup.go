package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
)

const (
	// MigrationDir is the path to migrations relative to the module root.
	MigrationDir = "internal/db/migrations"
	// MigrationDirFromInternalTests is used when go test ./... runs tests from internal/tests.
	MigrationDirFromInternalTests = "../../internal/db/migrations"
)

// ResolveMigrationDir returns the first existing directory of:
//   - internal/db/migrations (CWD=module root)
//   - ../../internal/db/migrations (CWD=internal/tests, e.g. go test ./...)
//
// Returns empty string if none exists.
func ResolveMigrationDir() string {
	for _, dir := range []string{MigrationDir, MigrationDirFromInternalTests} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			abs, _ := filepath.Abs(dir)
			return abs
		}
	}
	return ""
}

// RunMigrations runs goose Up using the resolved migration directory.
func RunMigrations(db *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	dir := ResolveMigrationDir()
	if dir == "" {
		return fmt.Errorf("migrations directory not found (tried %q, %q); run tests from the module root", MigrationDir, MigrationDirFromInternalTests)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// TruncateCoreTables truncates the mutable tables for a clean test state. The
// logo_config singleton row is reseeded because the API relies on it existing.
func TruncateCoreTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "TRUNCATE TABLE users, documents, archived_documents, app_config, audit_log, front_settings RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("truncate core tables: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		UPDATE logo_config SET current_logo = '', logo_history = '{}', updated_at = now() WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("reset logo config: %w", err)
	}
	return nil
}
