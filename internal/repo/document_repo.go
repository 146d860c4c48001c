package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/model"
)

// DocumentFilter narrows document queries; zero-value fields are ignored.
type DocumentFilter struct {
	Title     string
	Status    model.DocumentStatus
	Version   string
	StartDate *time.Time
	EndDate   *time.Time
}

// DocumentRepo defines the interface for the live document collection
type DocumentRepo interface {
	Insert(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (model.Document, error)
	GetByVersion(ctx context.Context, version string) (model.Document, error)
	GetCurrentActive(ctx context.Context) (model.Document, error)
	LatestVersionForTitle(ctx context.Context, title string) (string, error)

	DeleteByTitle(ctx context.Context, title string) error
	DeleteByTitleExcept(ctx context.Context, title string, keep uuid.UUID) error
	DeleteByID(ctx context.Context, id uuid.UUID) error

	SetStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus) error
	ActivateVersion(ctx context.Context, id uuid.UUID, title string) error

	ListAll(ctx context.Context) ([]model.Document, error)
	Recent(ctx context.Context, limit int) ([]model.Document, error)
	Search(ctx context.Context, query string) ([]model.Document, error)
	LatestPerTitle(ctx context.Context) ([]model.Document, error)
	Filter(ctx context.Context, f DocumentFilter) ([]model.Document, error)
}

type documentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo instance
func NewDocumentRepo(db *sql.DB) DocumentRepo {
	return &documentRepo{db: db}
}

const documentColumns = `id, title, content, author, valid_until, version, status, created_at`

func scanDocumentRow(scan func(dest ...any) error) (model.Document, error) {
	var d model.Document
	var idStr string
	err := scan(
		&idStr,
		&d.Title,
		&d.Content,
		&d.Author,
		&d.ValidUntil,
		&d.Version,
		&d.Status,
		&d.CreatedAt,
	)
	if err != nil {
		return model.Document{}, err
	}
	d.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Document{}, fmt.Errorf("parse document ID: %w", err)
	}
	return d, nil
}

func (r *documentRepo) queryOne(ctx context.Context, query string, args ...any) (model.Document, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	doc, err := scanDocumentRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Document{}, ErrNotFound
		}
		return model.Document{}, fmt.Errorf("query document: %w", err)
	}
	return doc, nil
}

func (r *documentRepo) queryMany(ctx context.Context, query string, args ...any) ([]model.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Insert adds a new document version to the live collection and fills in its ID.
func (r *documentRepo) Insert(ctx context.Context, doc *model.Document) error {
	query := `
		INSERT INTO documents (title, content, author, valid_until, version, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	var idStr string
	err := r.db.QueryRowContext(ctx, query,
		doc.Title,
		doc.Content,
		doc.Author,
		doc.ValidUntil,
		doc.Version,
		doc.Status,
	).Scan(&idStr, &doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.ID, err = uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Document, error) {
	return r.queryOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
}

func (r *documentRepo) GetByVersion(ctx context.Context, version string) (model.Document, error) {
	return r.queryOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE version = $1 LIMIT 1`, version)
}

// GetCurrentActive returns the single active row of the live collection.
func (r *documentRepo) GetCurrentActive(ctx context.Context) (model.Document, error) {
	return r.queryOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE status = 'active' LIMIT 1`)
}

// LatestVersionForTitle returns the highest version string among live rows for the title.
func (r *documentRepo) LatestVersionForTitle(ctx context.Context, title string) (string, error) {
	var version string
	err := r.db.QueryRowContext(ctx, `
		SELECT version FROM documents
		WHERE title = $1
		ORDER BY string_to_array(version, '.')::int[] DESC
		LIMIT 1
	`, title).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query latest version: %w", err)
	}
	return version, nil
}

func (r *documentRepo) DeleteByTitle(ctx context.Context, title string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE title = $1`, title)
	if err != nil {
		return fmt.Errorf("delete documents by title: %w", err)
	}
	return nil
}

func (r *documentRepo) DeleteByTitleExcept(ctx context.Context, title string, keep uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE title = $1 AND id <> $2`, title, keep)
	if err != nil {
		return fmt.Errorf("delete documents by title: %w", err)
	}
	return nil
}

func (r *documentRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *documentRepo) SetStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE documents SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActivateVersion deactivates every live row sharing the title and marks the
// target active, in one transaction so the one-active-per-title invariant
// cannot be observed broken.
func (r *documentRepo) ActivateVersion(ctx context.Context, id uuid.UUID, title string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET status = 'inactive' WHERE title = $1
	`, title); err != nil {
		return fmt.Errorf("deactivate title: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE documents SET status = 'active' WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("activate version: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *documentRepo) ListAll(ctx context.Context) ([]model.Document, error) {
	return r.queryMany(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
}

func (r *documentRepo) Recent(ctx context.Context, limit int) ([]model.Document, error) {
	return r.queryMany(ctx, `
		SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC LIMIT $1
	`, limit)
}

// Search performs a case-insensitive substring match across title and content.
func (r *documentRepo) Search(ctx context.Context, query string) ([]model.Document, error) {
	pattern := "%" + escapeLike(query) + "%"
	return r.queryMany(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE title ILIKE $1 OR content ILIKE $1
		ORDER BY created_at DESC
	`, pattern)
}

// LatestPerTitle returns, for every title in the live collection, the row with
// the highest version.
func (r *documentRepo) LatestPerTitle(ctx context.Context) ([]model.Document, error) {
	return r.queryMany(ctx, `
		SELECT DISTINCT ON (title) ` + documentColumns + `
		FROM documents
		ORDER BY title, string_to_array(version, '.')::int[] DESC
	`)
}

func (r *documentRepo) Filter(ctx context.Context, f DocumentFilter) ([]model.Document, error) {
	where, args := buildDocumentFilter(f)
	query := `SELECT ` + documentColumns + ` FROM documents` + where + ` ORDER BY created_at DESC`
	return r.queryMany(ctx, query, args...)
}

// buildDocumentFilter assembles a WHERE clause from the non-zero filter fields.
func buildDocumentFilter(f DocumentFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Title != "" {
		add("title = $%d", f.Title)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Version != "" {
		add("version = $%d", f.Version)
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at <= $%d", *f.EndDate)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike escapes LIKE metacharacters in user-supplied search terms.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
