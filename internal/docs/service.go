// Package docs implements the regulatory-document versioning engine: one live
// row per title carries the current lineage, superseded and deleted versions
// move to title-specific archive destinations.
package docs

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/audit"
	"github.com/cuidamed/backend/internal/model"
	"github.com/cuidamed/backend/internal/repo"
)

var (
	// ErrDocumentNotFound is returned when the referenced document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrPastValidity is returned when the validity deadline is already in the past.
	ErrPastValidity = errors.New("validity deadline must not be in the past")
)

const recentLimit = 5

// Engine maintains the exactly-one-active-version invariant per document
// title and the per-title version history.
type Engine struct {
	docRepo     repo.DocumentRepo
	archiveRepo repo.ArchiveRepo
	audit       *audit.Recorder

	// titleLocks serializes the archive-then-delete-then-insert sequences per
	// title so partial interleavings cannot leave two live rows or none.
	titleLocks sync.Map // title -> *sync.Mutex
}

// NewEngine creates a new document version engine
func NewEngine(docRepo repo.DocumentRepo, archiveRepo repo.ArchiveRepo, recorder *audit.Recorder) *Engine {
	return &Engine{docRepo: docRepo, archiveRepo: archiveRepo, audit: recorder}
}

func (e *Engine) lockTitle(title string) func() {
	mu, _ := e.titleLocks.LoadOrStore(title, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// sanitize neutralizes markup in free-text fields.
func sanitize(s string) string {
	return html.EscapeString(s)
}

// nextVersion returns version + step formatted to one decimal ("1.0" + 0.1 -> "1.1").
func nextVersion(version string, step float64) string {
	v, err := strconv.ParseFloat(version, 64)
	if err != nil {
		v = 1.0
	}
	return strconv.FormatFloat(v+step, 'f', 1, 64)
}

// Create inserts a new document version as inactive. A title behaves as a
// single-slot key in the live collection: any existing live rows for the same
// title are discarded first, not versioned — replacing the live row is the
// designed behavior of create, appending a version is what Update does.
func (e *Engine) Create(ctx context.Context, actorID uuid.UUID, title, content, author string, validUntil time.Time) (model.Document, error) {
	title = sanitize(title)
	content = sanitize(content)
	author = sanitize(author)

	if validUntil.Before(time.Now()) {
		return model.Document{}, ErrPastValidity
	}

	unlock := e.lockTitle(title)
	defer unlock()

	if err := e.docRepo.DeleteByTitle(ctx, title); err != nil {
		return model.Document{}, err
	}

	version := "1.0"
	if latest, err := e.docRepo.LatestVersionForTitle(ctx, title); err == nil {
		version = nextVersion(latest, 1.0)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return model.Document{}, err
	}

	doc := model.Document{
		Title:      title,
		Content:    content,
		Author:     author,
		ValidUntil: validUntil,
		Version:    version,
		Status:     model.DocumentInactive,
	}
	if err := e.docRepo.Insert(ctx, &doc); err != nil {
		return model.Document{}, err
	}

	e.audit.Record(ctx, actorID, "CREATE", "document", map[string]any{"documentId": doc.ID.String()})
	return doc, nil
}

// Update archives the current row into its title's archive destination,
// discards any other live rows sharing the title and inserts the next version
// (prior + 0.1) as inactive. The archived row keeps the status it held when
// it was superseded.
func (e *Engine) Update(ctx context.Context, actorID, id uuid.UUID, content, author string, validUntil time.Time) (model.Document, error) {
	if validUntil.Before(time.Now()) {
		return model.Document{}, ErrPastValidity
	}

	old, err := e.docRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Document{}, ErrDocumentNotFound
		}
		return model.Document{}, err
	}

	category, err := CategoryForTitle(old.Title)
	if err != nil {
		return model.Document{}, err
	}

	unlock := e.lockTitle(old.Title)
	defer unlock()

	archived := archivedFrom(old, category, old.Status)
	if err := e.archiveRepo.Insert(ctx, &archived); err != nil {
		return model.Document{}, err
	}

	if err := e.docRepo.DeleteByTitleExcept(ctx, old.Title, old.ID); err != nil {
		return model.Document{}, err
	}

	if author == "" {
		author = old.Author
	}
	doc := model.Document{
		Title:      old.Title,
		Content:    sanitize(content),
		Author:     sanitize(author),
		ValidUntil: validUntil,
		Version:    nextVersion(old.Version, 0.1),
		Status:     model.DocumentInactive,
	}
	if err := e.docRepo.Insert(ctx, &doc); err != nil {
		return model.Document{}, err
	}

	if err := e.docRepo.DeleteByID(ctx, old.ID); err != nil {
		return model.Document{}, err
	}

	e.audit.Record(ctx, actorID, "UPDATE", "document", map[string]any{"documentId": doc.ID.String()})
	return doc, nil
}

// Delete logically removes a document: the row is filed into its archive
// destination with status deleted and a deletion timestamp, then removed from
// the live collection.
func (e *Engine) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	doc, err := e.docRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}

	category, err := CategoryForTitle(doc.Title)
	if err != nil {
		return err
	}

	unlock := e.lockTitle(doc.Title)
	defer unlock()

	archived := archivedFrom(doc, category, model.DocumentDeleted)
	if err := e.archiveRepo.Insert(ctx, &archived); err != nil {
		return err
	}
	if err := e.docRepo.DeleteByID(ctx, doc.ID); err != nil {
		return err
	}

	e.audit.Record(ctx, actorID, "DELETE", "document", map[string]any{"documentId": doc.ID.String()})
	return nil
}

func archivedFrom(doc model.Document, category Category, status model.DocumentStatus) model.ArchivedDocument {
	return model.ArchivedDocument{
		Archive:    string(category),
		Title:      doc.Title,
		Content:    doc.Content,
		Author:     doc.Author,
		ValidUntil: doc.ValidUntil,
		Version:    doc.Version,
		Status:     status,
		CreatedAt:  doc.CreatedAt,
	}
}

// Activate makes the target row the single active version of its title: every
// other live row sharing the title becomes inactive. Archived rows are untouched.
func (e *Engine) Activate(ctx context.Context, actorID, id uuid.UUID) (model.Document, error) {
	doc, err := e.docRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Document{}, ErrDocumentNotFound
		}
		return model.Document{}, err
	}

	unlock := e.lockTitle(doc.Title)
	defer unlock()

	if err := e.docRepo.ActivateVersion(ctx, doc.ID, doc.Title); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Document{}, ErrDocumentNotFound
		}
		return model.Document{}, err
	}
	doc.Status = model.DocumentActive

	e.audit.Record(ctx, actorID, "ACTIVATE", "document", map[string]any{"documentId": doc.ID.String()})
	return doc, nil
}

// SetStatus updates a row's status directly, without the activation
// invariant. Exposed for administrative corrections.
func (e *Engine) SetStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus) (model.Document, error) {
	if err := e.docRepo.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Document{}, ErrDocumentNotFound
		}
		return model.Document{}, err
	}
	return e.GetByID(ctx, id)
}

func (e *Engine) GetByID(ctx context.Context, id uuid.UUID) (model.Document, error) {
	doc, err := e.docRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Document{}, ErrDocumentNotFound
		}
		return model.Document{}, err
	}
	return doc, nil
}

func (e *Engine) GetByVersion(ctx context.Context, version string) (model.Document, error) {
	doc, err := e.docRepo.GetByVersion(ctx, version)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Document{}, ErrDocumentNotFound
		}
		return model.Document{}, err
	}
	return doc, nil
}

// Current returns the single active row of the live collection.
func (e *Engine) Current(ctx context.Context, actorID uuid.UUID) (model.Document, error) {
	doc, err := e.docRepo.GetCurrentActive(ctx)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Document{}, ErrDocumentNotFound
		}
		return model.Document{}, err
	}
	e.audit.Record(ctx, actorID, "VIEW_CURRENT", "document", map[string]any{"documentId": doc.ID.String()})
	return doc, nil
}

func (e *Engine) All(ctx context.Context, actorID uuid.UUID) ([]model.Document, error) {
	docs, err := e.docRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	e.audit.Record(ctx, actorID, "VIEW_ALL", "documents", map[string]any{"count": len(docs)})
	return docs, nil
}

func (e *Engine) Recent(ctx context.Context, actorID uuid.UUID) ([]model.Document, error) {
	docs, err := e.docRepo.Recent(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	e.audit.Record(ctx, actorID, "VIEW_RECENT", "documents", nil)
	return docs, nil
}

// Search matches the query case-insensitively against title and content.
func (e *Engine) Search(ctx context.Context, actorID uuid.UUID, query string) ([]model.Document, error) {
	docs, err := e.docRepo.Search(ctx, sanitize(query))
	if err != nil {
		return nil, err
	}
	e.audit.Record(ctx, actorID, "SEARCH", "documents", map[string]any{"searchQuery": query})
	return docs, nil
}

// History returns the full archive of one title's destination, newest first.
func (e *Engine) History(ctx context.Context, title string) ([]model.ArchivedDocument, error) {
	category, err := CategoryForTitle(title)
	if err != nil {
		return nil, err
	}
	return e.archiveRepo.ListByArchive(ctx, string(category))
}

// LatestPerTitle returns the highest live version of every title.
func (e *Engine) LatestPerTitle(ctx context.Context) ([]model.Document, error) {
	return e.docRepo.LatestPerTitle(ctx)
}

// DeletedByArchive returns the deleted rows of every archive destination,
// grouped by archive name.
func (e *Engine) DeletedByArchive(ctx context.Context) (map[string][]model.ArchivedDocument, error) {
	out := make(map[string][]model.ArchivedDocument, len(Categories))
	for _, c := range Categories {
		docs, err := e.archiveRepo.ListByArchiveAndStatus(ctx, string(c), model.DocumentDeleted)
		if err != nil {
			return nil, fmt.Errorf("list deleted in %s: %w", c, err)
		}
		out[string(c)] = docs
	}
	return out, nil
}

// Filter applies the filter to the live collection.
func (e *Engine) Filter(ctx context.Context, f repo.DocumentFilter) ([]model.Document, error) {
	return e.docRepo.Filter(ctx, f)
}

// FilterArchive applies the filter within one archive destination.
func (e *Engine) FilterArchive(ctx context.Context, category Category, f repo.DocumentFilter) ([]model.ArchivedDocument, error) {
	return e.archiveRepo.Filter(ctx, string(category), f)
}
