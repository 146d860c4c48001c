package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cuidamed/backend/internal/model"
	"github.com/cuidamed/backend/internal/repo"
)

// FrontHandler serves the front-end display settings and the logo store.
type FrontHandler struct {
	frontRepo repo.FrontRepo
}

// NewFrontHandler creates a new front settings handler
func NewFrontHandler(frontRepo repo.FrontRepo) *FrontHandler {
	return &FrontHandler{frontRepo: frontRepo}
}

func (h *FrontHandler) respondFrontError(w http.ResponseWriter, operation string, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "not found")
		return
	}
	log.Printf("%s: %v", operation, err)
	respondWithError(w, http.StatusInternalServerError, "server error")
}

type frontSettingResponse struct {
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toFrontSettingResponse(s model.FrontSetting) frontSettingResponse {
	return frontSettingResponse{Type: s.Type, Value: s.Value, UpdatedAt: s.UpdatedAt}
}

// HandleGetConfig handles GET /front/getConfig: every display setting.
func (h *FrontHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	settings, err := h.frontRepo.ListSettings(r.Context())
	if err != nil {
		h.respondFrontError(w, "list front settings", err)
		return
	}
	out := make([]frontSettingResponse, 0, len(settings))
	for _, s := range settings {
		out = append(out, toFrontSettingResponse(s))
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleGetSetting handles GET /front/{type}
func (h *FrontHandler) HandleGetSetting(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	setting, err := h.frontRepo.GetSetting(r.Context(), typ)
	if err != nil {
		h.respondFrontError(w, "get front setting", err)
		return
	}
	respondJSON(w, http.StatusOK, toFrontSettingResponse(setting))
}

// HandleUpdateData handles PUT /front/updateData: upsert one display setting.
func (h *FrontHandler) HandleUpdateData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		respondWithError(w, http.StatusBadRequest, "type is required")
		return
	}
	if err := h.frontRepo.UpsertSetting(r.Context(), req.Type, req.Value); err != nil {
		h.respondFrontError(w, "upsert front setting", err)
		return
	}
	respondMsg(w, http.StatusOK, "setting updated")
}

// HandleDeleteSetting handles DELETE /front/{type}
func (h *FrontHandler) HandleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	if err := h.frontRepo.DeleteSetting(r.Context(), typ); err != nil {
		h.respondFrontError(w, "delete front setting", err)
		return
	}
	respondMsg(w, http.StatusOK, "setting deleted")
}

type logoResponse struct {
	CurrentLogo string    `json:"currentLogo"`
	LogoHistory []string  `json:"logoHistory"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toLogoResponse(l model.LogoConfig) logoResponse {
	if l.LogoHistory == nil {
		l.LogoHistory = []string{}
	}
	return logoResponse{CurrentLogo: l.CurrentLogo, LogoHistory: l.LogoHistory, UpdatedAt: l.UpdatedAt}
}

// HandleLogoHistory handles GET /front/logoHistory
func (h *FrontHandler) HandleLogoHistory(w http.ResponseWriter, r *http.Request) {
	logo, err := h.frontRepo.GetLogo(r.Context())
	if err != nil {
		h.respondFrontError(w, "get logo", err)
		return
	}
	respondJSON(w, http.StatusOK, toLogoResponse(logo))
}

// HandleUpdateLogo handles PUT /front/updateLogo. The new logo becomes current
// and is appended to the history; currentLogo in the body names the value the
// caller believes is live and is accepted for compatibility but not required
// to match.
func (h *FrontHandler) HandleUpdateLogo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentLogo string `json:"currentLogo"`
		NewLogo     string `json:"newLogo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.NewLogo) == "" {
		respondWithError(w, http.StatusBadRequest, "newLogo is required")
		return
	}
	logo, err := h.frontRepo.SetLogo(r.Context(), req.NewLogo, true)
	if err != nil {
		h.respondFrontError(w, "update logo", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"msg":  "logo updated",
		"logo": toLogoResponse(logo),
	})
}

// HandleActivateLogo handles PUT /front/logo/activate: an entry from the
// history (or a brand-new value) becomes the current logo.
func (h *FrontHandler) HandleActivateLogo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LogoToActivate string `json:"logoToActivate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.LogoToActivate) == "" {
		respondWithError(w, http.StatusBadRequest, "logoToActivate is required")
		return
	}
	logo, err := h.frontRepo.ActivateLogo(r.Context(), req.LogoToActivate)
	if err != nil {
		h.respondFrontError(w, "activate logo", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"msg":  "logo activated",
		"logo": toLogoResponse(logo),
	})
}
