package http

import (
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuidamed/backend/internal/http/handlers"
)

// newTestRouter builds the full route tree with empty collaborators. Matching
// never invokes a handler, so nil services are fine here.
func newTestRouter() *chi.Mux {
	return NewRouter(RouterDeps{
		AuthHandler:     handlers.NewAuthHandler(nil, nil, false),
		DocumentHandler: handlers.NewDocumentHandler(nil),
		ConfigHandler:   handlers.NewConfigHandler(nil, nil),
		FrontHandler:    handlers.NewFrontHandler(nil),
	})
}

func routePattern(t *testing.T, mux *chi.Mux, method, path string) string {
	t.Helper()
	rctx := chi.NewRouteContext()
	require.True(t, mux.Match(rctx, method, path), "%s %s must have a route", method, path)
	return rctx.RoutePattern()
}

func TestConfigRoutes(t *testing.T) {
	mux := newTestRouter()

	assert.Equal(t, "/config/getConfig", routePattern(t, mux, "GET", "/config/getConfig"))
	assert.Equal(t, "/config/getRecentUsers", routePattern(t, mux, "GET", "/config/getRecentUsers"))
	assert.Equal(t, "/config/maxLoginAttempts", routePattern(t, mux, "PUT", "/config/maxLoginAttempts"))
}

func TestFrontRoutes(t *testing.T) {
	mux := newTestRouter()

	assert.Equal(t, "/front/updateData", routePattern(t, mux, "PUT", "/front/updateData"))
	assert.Equal(t, "/front/updateLogo", routePattern(t, mux, "PUT", "/front/updateLogo"))

	// The logo history path has its own route; it must not fall into the
	// setting-lookup wildcard as a setting named "logoHistory".
	assert.Equal(t, "/front/logoHistory", routePattern(t, mux, "GET", "/front/logoHistory"))
	assert.Equal(t, "/front/{type}", routePattern(t, mux, "GET", "/front/welcomeBanner"))
}
