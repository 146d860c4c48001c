package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/docs"
	"github.com/cuidamed/backend/internal/metrics"
	"github.com/cuidamed/backend/internal/middleware"
	"github.com/cuidamed/backend/internal/model"
	"github.com/cuidamed/backend/internal/repo"
)

// DocumentHandler handles the regulatory-document endpoints
type DocumentHandler struct {
	engine *docs.Engine
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(engine *docs.Engine) *DocumentHandler {
	return &DocumentHandler{engine: engine}
}

func (h *DocumentHandler) respondEngineError(w http.ResponseWriter, operation string, err error) {
	switch {
	case errors.Is(err, docs.ErrDocumentNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, docs.ErrUnknownCategory), errors.Is(err, docs.ErrPastValidity):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("%s failed: %v", operation, err)
		respondWithError(w, http.StatusInternalServerError, "server error")
	}
}

func actorID(r *http.Request) (uuid.UUID, bool) {
	return middleware.GetUserID(r.Context())
}

func parseIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// documentRequest is the request body for create and update
type documentRequest struct {
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Author     string    `json:"author"`
	ValidUntil time.Time `json:"validUntil"`
}

func validateDocumentRequest(req documentRequest, requireTitle bool) []fieldError {
	var errs []fieldError
	if requireTitle && strings.TrimSpace(req.Title) == "" {
		errs = append(errs, fieldError{Field: "title", Message: "title is required"})
	}
	if strings.TrimSpace(req.Content) == "" {
		errs = append(errs, fieldError{Field: "content", Message: "content is required"})
	}
	if req.ValidUntil.IsZero() {
		errs = append(errs, fieldError{Field: "validUntil", Message: "invalid validity date"})
	}
	return errs
}

// HandleCreate handles POST /documents/create
func (h *DocumentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validateDocumentRequest(req, true); len(errs) > 0 {
		respondValidationErrors(w, errs)
		return
	}

	doc, err := h.engine.Create(r.Context(), actor, req.Title, req.Content, req.Author, req.ValidUntil)
	if err != nil {
		h.respondEngineError(w, "create document", err)
		return
	}

	metrics.DocumentMutationsTotal.WithLabelValues("create").Inc()
	respondJSON(w, http.StatusCreated, map[string]any{
		"msg":      "document created successfully",
		"document": toDocumentResponse(doc),
	})
}

// HandleUpdate handles PUT /documents/{id}: it archives the old row and
// creates the next version.
func (h *DocumentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid document ID")
		return
	}

	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validateDocumentRequest(req, false); len(errs) > 0 {
		respondValidationErrors(w, errs)
		return
	}

	doc, err := h.engine.Update(r.Context(), actor, id, req.Content, req.Author, req.ValidUntil)
	if err != nil {
		h.respondEngineError(w, "update document", err)
		return
	}

	metrics.DocumentMutationsTotal.WithLabelValues("update").Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"message":  "document updated, new version created",
		"document": toDocumentResponse(doc),
	})
}

// HandleDelete handles DELETE /documents/{id} (logical delete into history)
func (h *DocumentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid document ID")
		return
	}
	if err := h.engine.Delete(r.Context(), actor, id); err != nil {
		h.respondEngineError(w, "delete document", err)
		return
	}
	metrics.DocumentMutationsTotal.WithLabelValues("delete").Inc()
	respondJSON(w, http.StatusOK, map[string]string{"message": "document deleted and moved to history"})
}

// HandleActivate handles PATCH /documents/{id}/status: it makes the target
// the single active version of its title.
func (h *DocumentHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid document ID")
		return
	}
	doc, err := h.engine.Activate(r.Context(), actor, id)
	if err != nil {
		h.respondEngineError(w, "activate document version", err)
		return
	}
	metrics.DocumentMutationsTotal.WithLabelValues("activate").Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"msg":      "version activated",
		"document": toDocumentResponse(doc),
	})
}

// setStatusRequest is the request body for PATCH /documents/{id}/setStatus
type setStatusRequest struct {
	Status model.DocumentStatus `json:"status"`
}

// HandleSetStatus handles PATCH /documents/{id}/setStatus
func (h *DocumentHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid document ID")
		return
	}
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Status {
	case model.DocumentActive, model.DocumentInactive, model.DocumentDeleted:
	default:
		respondWithError(w, http.StatusBadRequest, "invalid status")
		return
	}

	doc, err := h.engine.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondEngineError(w, "set document status", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"msg":      "document status updated",
		"document": toDocumentResponse(doc),
	})
}

// HandleGetByID handles GET /documents/getdoc/{id}
func (h *DocumentHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid document ID")
		return
	}
	doc, err := h.engine.GetByID(r.Context(), id)
	if err != nil {
		h.respondEngineError(w, "get document", err)
		return
	}
	respondJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// HandleGetByVersion handles GET /documents/version/{version}
func (h *DocumentHandler) HandleGetByVersion(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")
	doc, err := h.engine.GetByVersion(r.Context(), version)
	if err != nil {
		h.respondEngineError(w, "get document by version", err)
		return
	}
	respondJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// HandleCurrent handles GET /documents/current: the single active row.
func (h *DocumentHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	doc, err := h.engine.Current(r.Context(), actor)
	if err != nil {
		if errors.Is(err, docs.ErrDocumentNotFound) {
			respondWithError(w, http.StatusNotFound, "no active version")
			return
		}
		h.respondEngineError(w, "get current version", err)
		return
	}
	respondJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// HandleGetAll handles GET /documents/getDocuments
func (h *DocumentHandler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	documents, err := h.engine.All(r.Context(), actor)
	if err != nil {
		h.respondEngineError(w, "list documents", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"documents":      toDocumentResponses(documents),
		"totalDocuments": len(documents),
	})
}

// HandleSearch handles GET /documents/search?query=
func (h *DocumentHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	documents, err := h.engine.Search(r.Context(), actor, r.URL.Query().Get("query"))
	if err != nil {
		h.respondEngineError(w, "search documents", err)
		return
	}
	respondJSON(w, http.StatusOK, toDocumentResponses(documents))
}

// HandleRecent handles GET /documents/recent
func (h *DocumentHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	documents, err := h.engine.Recent(r.Context(), actor)
	if err != nil {
		h.respondEngineError(w, "list recent documents", err)
		return
	}
	respondJSON(w, http.StatusOK, toDocumentResponses(documents))
}

// HandleHistory handles GET /documents/history/{title} (public)
func (h *DocumentHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	history, err := h.engine.History(r.Context(), title)
	if err != nil {
		h.respondEngineError(w, "get document history", err)
		return
	}
	respondJSON(w, http.StatusOK, toArchivedResponses(history))
}

// HandleLatest handles GET /documents/latest (public): highest live version per title.
func (h *DocumentHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	documents, err := h.engine.LatestPerTitle(r.Context())
	if err != nil {
		h.respondEngineError(w, "get latest versions", err)
		return
	}
	respondJSON(w, http.StatusOK, toDocumentResponses(documents))
}

// HandleDeleted handles GET /documents/deleted (public): deleted rows grouped
// by archive destination.
func (h *DocumentHandler) HandleDeleted(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.engine.DeletedByArchive(r.Context())
	if err != nil {
		h.respondEngineError(w, "list deleted documents", err)
		return
	}
	out := make(map[string][]archivedResponse, len(grouped))
	for archive, documents := range grouped {
		out[archive] = toArchivedResponses(documents)
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleFilter handles GET /documents/filter (public). The collection query
// parameter selects an archive destination; absent or unrecognized values
// target the live collection.
func (h *DocumentHandler) HandleFilter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.DocumentFilter{
		Title:   q.Get("title"),
		Status:  model.DocumentStatus(q.Get("status")),
		Version: q.Get("version"),
	}
	if v := q.Get("startDate"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid startDate")
			return
		}
		filter.StartDate = &t
	}
	if v := q.Get("endDate"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid endDate")
			return
		}
		filter.EndDate = &t
	}

	if category, ok := docs.ParseCategory(q.Get("collection")); ok {
		results, err := h.engine.FilterArchive(r.Context(), category, filter)
		if err != nil {
			h.respondEngineError(w, "filter archived documents", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"message": "documents filtered successfully",
			"results": toArchivedResponses(results),
		})
		return
	}

	results, err := h.engine.Filter(r.Context(), filter)
	if err != nil {
		h.respondEngineError(w, "filter documents", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "documents filtered successfully",
		"results": toDocumentResponses(results),
	})
}

// documentResponse is the document object in API responses
type documentResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Author     string    `json:"author"`
	ValidUntil time.Time `json:"validUntil"`
	Version    string    `json:"version"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

type archivedResponse struct {
	documentResponse
	Archive string    `json:"archive"`
	MovedAt time.Time `json:"movedAt"`
}

func toDocumentResponse(d model.Document) documentResponse {
	return documentResponse{
		ID:         d.ID.String(),
		Title:      d.Title,
		Content:    d.Content,
		Author:     d.Author,
		ValidUntil: d.ValidUntil,
		Version:    d.Version,
		Status:     string(d.Status),
		CreatedAt:  d.CreatedAt,
	}
}

func toDocumentResponses(documents []model.Document) []documentResponse {
	out := make([]documentResponse, 0, len(documents))
	for _, d := range documents {
		out = append(out, toDocumentResponse(d))
	}
	return out
}

func toArchivedResponses(documents []model.ArchivedDocument) []archivedResponse {
	out := make([]archivedResponse, 0, len(documents))
	for _, d := range documents {
		out = append(out, archivedResponse{
			documentResponse: documentResponse{
				ID:         d.ID.String(),
				Title:      d.Title,
				Content:    d.Content,
				Author:     d.Author,
				ValidUntil: d.ValidUntil,
				Version:    d.Version,
				Status:     string(d.Status),
				CreatedAt:  d.CreatedAt,
			},
			Archive: d.Archive,
			MovedAt: d.MovedAt,
		})
	}
	return out
}
