package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("email:maria@example.com"), "request %d must be allowed", i+1)
	}
	assert.False(t, rl.Allow("email:maria@example.com"), "4th request inside the window must be blocked")

	// Other keys are unaffected.
	assert.True(t, rl.Allow("email:pedro@example.com"))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 1)
	handler := RateLimitMiddleware(rl, GetIPKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
