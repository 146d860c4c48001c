package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter caps how often a key may hit a route within a sliding window.
// Keys are opaque; the login path limits per client IP while the
// password-reset path limits per target email.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	window time.Duration
	limit  int
}

// NewRateLimiter creates a limiter allowing limit requests per key per window.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	rl := &RateLimiter{
		hits:   make(map[string][]time.Time),
		window: window,
		limit:  limit,
	}
	go rl.sweep()
	return rl
}

// Allow records an attempt for key and reports whether it stays within the
// window's budget.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	recent := rl.hits[key][:0]
	for _, t := range rl.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= rl.limit {
		rl.hits[key] = recent
		return false
	}
	rl.hits[key] = append(recent, now)
	return true
}

// sweep drops keys whose entries all aged out, so idle keys do not accumulate.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-rl.window)
		for key, times := range rl.hits {
			live := false
			for _, t := range times {
				if t.After(cutoff) {
					live = true
					break
				}
			}
			if !live {
				delete(rl.hits, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware rejects requests over the limiter's budget with 429,
// keyed by keyFunc.
func RateLimitMiddleware(limiter *RateLimiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFunc(r)) {
				respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIPKey builds a limiter key from the client address, preferring the
// proxy-reported one.
func GetIPKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return "ip:" + forwarded
	}
	return "ip:" + r.RemoteAddr
}

// GetEmailKey builds a limiter key from an account email.
func GetEmailKey(email string) string {
	return "email:" + email
}
