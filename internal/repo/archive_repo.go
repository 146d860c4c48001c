package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/model"
)

// ArchiveRepo defines the interface for the title-keyed history destinations.
// Archived rows are never consulted for current state.
type ArchiveRepo interface {
	Insert(ctx context.Context, doc *model.ArchivedDocument) error
	ListByArchive(ctx context.Context, archive string) ([]model.ArchivedDocument, error)
	ListByArchiveAndStatus(ctx context.Context, archive string, status model.DocumentStatus) ([]model.ArchivedDocument, error)
	Filter(ctx context.Context, archive string, f DocumentFilter) ([]model.ArchivedDocument, error)
}

type archiveRepo struct {
	db *sql.DB
}

// NewArchiveRepo creates a new ArchiveRepo instance
func NewArchiveRepo(db *sql.DB) ArchiveRepo {
	return &archiveRepo{db: db}
}

const archivedColumns = `id, archive, title, content, author, valid_until, version, status, created_at, moved_at`

func (r *archiveRepo) queryMany(ctx context.Context, query string, args ...any) ([]model.ArchivedDocument, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var docs []model.ArchivedDocument
	for rows.Next() {
		var d model.ArchivedDocument
		var idStr string
		err := rows.Scan(
			&idStr,
			&d.Archive,
			&d.Title,
			&d.Content,
			&d.Author,
			&d.ValidUntil,
			&d.Version,
			&d.Status,
			&d.CreatedAt,
			&d.MovedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archived document: %w", err)
		}
		d.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse archived document ID: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Insert files a superseded or deleted row into its archive destination.
func (r *archiveRepo) Insert(ctx context.Context, doc *model.ArchivedDocument) error {
	query := `
		INSERT INTO archived_documents (archive, title, content, author, valid_until, version, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, moved_at
	`
	var idStr string
	err := r.db.QueryRowContext(ctx, query,
		doc.Archive,
		doc.Title,
		doc.Content,
		doc.Author,
		doc.ValidUntil,
		doc.Version,
		doc.Status,
		doc.CreatedAt,
	).Scan(&idStr, &doc.MovedAt)
	if err != nil {
		return fmt.Errorf("insert archived document: %w", err)
	}
	doc.ID, err = uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse archived document ID: %w", err)
	}
	return nil
}

// ListByArchive returns the full history of one destination, newest first.
func (r *archiveRepo) ListByArchive(ctx context.Context, archive string) ([]model.ArchivedDocument, error) {
	return r.queryMany(ctx, `
		SELECT `+archivedColumns+` FROM archived_documents
		WHERE archive = $1
		ORDER BY created_at DESC
	`, archive)
}

func (r *archiveRepo) ListByArchiveAndStatus(ctx context.Context, archive string, status model.DocumentStatus) ([]model.ArchivedDocument, error) {
	return r.queryMany(ctx, `
		SELECT `+archivedColumns+` FROM archived_documents
		WHERE archive = $1 AND status = $2
		ORDER BY created_at DESC
	`, archive, status)
}

// Filter applies the document filter within one archive destination.
func (r *archiveRepo) Filter(ctx context.Context, archive string, f DocumentFilter) ([]model.ArchivedDocument, error) {
	where, args := buildDocumentFilter(f)
	if where == "" {
		where = " WHERE archive = $1"
		args = []any{archive}
	} else {
		args = append(args, archive)
		where += fmt.Sprintf(" AND archive = $%d", len(args))
	}
	query := `SELECT ` + archivedColumns + ` FROM archived_documents` + where + ` ORDER BY created_at DESC`
	return r.queryMany(ctx, query, args...)
}
