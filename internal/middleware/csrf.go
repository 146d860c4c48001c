package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// CSRFCookieName is the double-submit cookie holding the anti-forgery token.
const CSRFCookieName = "csrfToken"

// CSRFHeaderName is the request header that must echo the cookie value on
// state-changing requests.
const CSRFHeaderName = "X-CSRF-Token"

// IssueCSRFToken handles GET /get-csrf-token: it sets the anti-forgery cookie
// and returns the token so the client can echo it in a header.
func IssueCSRFToken(secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			respondWithError(w, http.StatusInternalServerError, "failed to issue CSRF token")
			return
		}
		token := base64.RawURLEncoding.EncodeToString(b)

		http.SetCookie(w, &http.Cookie{
			Name:     CSRFCookieName,
			Value:    token,
			Path:     "/",
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": token})
	}
}

// CSRFProtect enforces the double-submit check on state-changing methods:
// the request header must match the cookie issued by IssueCSRFToken.
func CSRFProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CSRFCookieName)
		if err != nil || cookie.Value == "" {
			respondWithError(w, http.StatusForbidden, "missing CSRF token")
			return
		}
		header := r.Header.Get(CSRFHeaderName)
		if header == "" || subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
			respondWithError(w, http.StatusForbidden, "invalid CSRF token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
