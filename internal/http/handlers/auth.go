package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/auth"
	"github.com/cuidamed/backend/internal/metrics"
	"github.com/cuidamed/backend/internal/middleware"
	"github.com/cuidamed/backend/internal/settings"
)

// sessionCookieMaxAge bounds the cookie's lifetime in the browser; the token
// inside expires on its own schedule.
const sessionCookieMaxAge = 24 * time.Hour

// AuthHandler handles the authentication endpoints
type AuthHandler struct {
	authService   *auth.Service
	settings      settings.Provider
	secureCookies bool

	loginLimiter *middleware.RateLimiter
	resetLimiter *middleware.RateLimiter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, provider settings.Provider, secureCookies bool) *AuthHandler {
	// IP rate limits: 10 login attempts and 5 reset requests per 15 minutes.
	return &AuthHandler{
		authService:   authService,
		settings:      provider,
		secureCookies: secureCookies,
		loginLimiter:  middleware.NewRateLimiter(15*time.Minute, 10),
		resetLimiter:  middleware.NewRateLimiter(15*time.Minute, 5),
	}
}

// authErrorStatus maps domain errors to HTTP statuses. Unknown errors are
// infrastructure failures: they are logged in the handler and become a
// generic 500.
func authErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, auth.ErrAccountInactive),
		errors.Is(err, auth.ErrAccountLocked):
		return http.StatusForbidden, true
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, auth.ErrUnknownEmail),
		errors.Is(err, auth.ErrIncorrectPassword),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, auth.ErrCaptchaFailed),
		errors.Is(err, auth.ErrAlreadyVerified),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidOTP),
		errors.Is(err, auth.ErrInvalidResetCode),
		errors.Is(err, auth.ErrSamePassword):
		return http.StatusBadRequest, true
	}
	return 0, false
}

func (h *AuthHandler) respondAuthError(w http.ResponseWriter, operation string, err error) {
	if status, ok := authErrorStatus(err); ok {
		respondMsg(w, status, err.Error())
		return
	}
	log.Printf("%s failed: %v", operation, err)
	respondMsg(w, http.StatusInternalServerError, "server error")
}

// registerRequest is the request body for POST /auth/register
type registerRequest struct {
	Email        string `json:"correo"`
	Password     string `json:"contraseña"`
	FullName     string `json:"nombreCompleto"`
	CaptchaToken string `json:"captchaToken"`
}

func validateRegistration(req registerRequest) []fieldError {
	var errs []fieldError
	if _, err := mail.ParseAddress(req.Email); err != nil {
		errs = append(errs, fieldError{Field: "correo", Message: "invalid email"})
	}
	if !auth.IsStrongPassword(req.Password) {
		errs = append(errs, fieldError{Field: "contraseña", Message: auth.ErrWeakPassword.Error()})
	}
	if strings.TrimSpace(req.FullName) == "" {
		errs = append(errs, fieldError{Field: "nombreCompleto", Message: "full name is required"})
	}
	if req.CaptchaToken == "" {
		errs = append(errs, fieldError{Field: "captchaToken", Message: "missing CAPTCHA token"})
	}
	return errs
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if errs := validateRegistration(req); len(errs) > 0 {
		respondValidationErrors(w, errs)
		return
	}

	err := h.authService.Register(r.Context(), req.Email, req.Password, req.FullName, req.CaptchaToken, getClientIP(r))
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		h.respondAuthError(w, "register", err)
		return
	}

	metrics.RegistrationsTotal.WithLabelValues("ok").Inc()
	respondMsg(w, http.StatusCreated, "user registered, check your email to verify the account")
}

// HandleVerifyAccount handles GET /auth/verify/{token}
func (h *AuthHandler) HandleVerifyAccount(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		respondMsg(w, http.StatusBadRequest, "missing token")
		return
	}
	if err := h.authService.VerifyAccount(r.Context(), token); err != nil {
		h.respondAuthError(w, "verify account", err)
		return
	}
	respondMsg(w, http.StatusOK, "account verified successfully")
}

// resendVerificationRequest is the request body for POST /auth/resend-verification
type resendVerificationRequest struct {
	Email string `json:"email"`
}

// HandleResendVerification handles POST /auth/resend-verification
func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.authService.ResendVerification(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		h.respondAuthError(w, "resend verification", err)
		return
	}
	respondMsg(w, http.StatusOK, "verification email resent")
}

// loginRequest is the request body for POST /auth/login
type loginRequest struct {
	Email    string `json:"correo"`
	Password string `json:"pass"`
}

// loginResponse returns the handle used by the OTP verification phase
type loginResponse struct {
	Msg    string `json:"msg"`
	UserID string `json:"userId"`
}

// HandleLogin handles POST /auth/login (phase 1: credentials)
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.loginLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "correo and pass are required")
		return
	}

	userID, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccountLocked):
			metrics.LoginsTotal.WithLabelValues("locked").Inc()
		case errors.Is(err, auth.ErrIncorrectPassword):
			metrics.LoginsTotal.WithLabelValues("bad_password").Inc()
		default:
			metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		}
		h.respondAuthError(w, "login", err)
		return
	}

	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, loginResponse{
		Msg:    "OTP sent, check your email to continue",
		UserID: userID.String(),
	})
}

// verifyOTPRequest is the request body for POST /auth/verify-otp
type verifyOTPRequest struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

// HandleVerifyOTP handles POST /auth/verify-otp (phase 2). On success the
// session credential is set as an HTTP-only, same-site-strict cookie.
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondMsg(w, http.StatusBadRequest, auth.ErrInvalidOTP.Error())
		return
	}
	otp, err := strconv.Atoi(strings.TrimSpace(req.OTP))
	if err != nil {
		respondMsg(w, http.StatusBadRequest, auth.ErrInvalidOTP.Error())
		return
	}

	token, err := h.authService.VerifyOTP(r.Context(), userID, otp)
	if err != nil {
		h.respondAuthError(w, "verify OTP", err)
		return
	}

	metrics.SessionsIssuedTotal.Inc()
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	respondMsg(w, http.StatusOK, "login successful")
}

// resendOTPRequest is the request body for POST /auth/resend-otp
type resendOTPRequest struct {
	UserID string `json:"userId"`
}

// HandleResendOTP handles POST /auth/resend-otp
func (h *AuthHandler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondMsg(w, http.StatusNotFound, auth.ErrUserNotFound.Error())
		return
	}
	if err := h.authService.ResendOTP(r.Context(), userID); err != nil {
		h.respondAuthError(w, "resend OTP", err)
		return
	}
	respondMsg(w, http.StatusOK, "OTP resent, check your email")
}

// HandleLogout handles POST /auth/logout: it clears the session cookie. The
// credential itself stays valid until it expires; there is no revocation list.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	respondMsg(w, http.StatusOK, "logged out")
}

// HandleUserData handles GET /auth/user-data (protected): returns the
// identity and role attached by the session guard.
func (h *AuthHandler) HandleUserData(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondMsg(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	role, _ := middleware.GetRole(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{
		"userId": userID.String(),
		"role":   string(role),
	})
}

// HandleOTPExpTime handles GET /auth/otp-exp-time: public read of the OTP lifetime.
func (h *AuthHandler) HandleOTPExpTime(w http.ResponseWriter, r *http.Request) {
	value, err := h.settings.GetValue(r.Context(), settings.KeyOtpExpTime)
	if err != nil {
		log.Printf("read OTP lifetime: %v", err)
		respondMsg(w, http.StatusInternalServerError, "server error")
		return
	}
	if value == nil {
		respondMsg(w, http.StatusNotFound, "OTP expiry time is not configured")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"value": value})
}

// requestPasswordResetRequest is the request body for POST /auth/requestPasswordReset
type requestPasswordResetRequest struct {
	Email string `json:"correo"`
}

// HandleRequestPasswordReset handles POST /auth/requestPasswordReset. The
// limiter is keyed by the target email so an attacker cannot spam one inbox
// from many addresses.
func (h *AuthHandler) HandleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req requestPasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !h.resetLimiter.Allow(middleware.GetEmailKey(req.Email)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.respondAuthError(w, "request password reset", err)
		return
	}
	respondMsg(w, http.StatusOK, "a verification code was sent to your email")
}

// verifyResetCodeRequest is the request body for POST /auth/verifyCodeReset
type verifyResetCodeRequest struct {
	Email string `json:"correo"`
	Code  string `json:"codigo"`
}

// HandleVerifyResetCode handles POST /auth/verifyCodeReset. The code is not
// consumed here; it remains valid for the final reset step.
func (h *AuthHandler) HandleVerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req verifyResetCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.authService.VerifyResetCode(r.Context(), strings.TrimSpace(req.Email), strings.TrimSpace(req.Code)); err != nil {
		h.respondAuthError(w, "verify reset code", err)
		return
	}
	respondMsg(w, http.StatusOK, "code verified successfully")
}

// resetPasswordRequest is the request body for POST /auth/resetPassword
type resetPasswordRequest struct {
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"nuevaContraseña"`
}

// HandleResetPassword handles POST /auth/resetPassword
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !auth.IsStrongPassword(req.NewPassword) {
		respondValidationErrors(w, []fieldError{
			{Field: "nuevaContraseña", Message: auth.ErrWeakPassword.Error()},
		})
		return
	}
	if err := h.authService.ResetPassword(r.Context(), strings.TrimSpace(req.ResetToken), req.NewPassword); err != nil {
		h.respondAuthError(w, "reset password", err)
		return
	}
	respondMsg(w, http.StatusOK, "password reset successfully")
}
