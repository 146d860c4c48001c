package http

import (
	"database/sql"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cuidamed/backend/internal/auth"
	"github.com/cuidamed/backend/internal/http/handlers"
	"github.com/cuidamed/backend/internal/metrics"
	"github.com/cuidamed/backend/internal/middleware"
	"github.com/cuidamed/backend/internal/model"
)

// RouterDeps bundles everything the router wires together.
type RouterDeps struct {
	DB              *sql.DB
	JWTService      *auth.JWTService
	AuthHandler     *handlers.AuthHandler
	DocumentHandler *handlers.DocumentHandler
	ConfigHandler   *handlers.ConfigHandler
	FrontHandler    *handlers.FrontHandler
	SecureCookies   bool
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	// CSRFProtect passes safe methods through, so it can sit on the whole tree.
	r.Use(middleware.CSRFProtect)

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.Get("/health", healthHandler.ServeHTTP)
	r.Method("GET", "/metrics", metrics.Handler())
	r.Get("/get-csrf-token", middleware.IssueCSRFToken(deps.SecureCookies))

	guard := middleware.SessionGuard(deps.JWTService)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", deps.AuthHandler.HandleRegister)
		r.Get("/verify/{token}", deps.AuthHandler.HandleVerifyAccount)
		r.Post("/resend-verification", deps.AuthHandler.HandleResendVerification)

		r.Post("/login", deps.AuthHandler.HandleLogin)
		r.Post("/verify-otp", deps.AuthHandler.HandleVerifyOTP)
		r.Post("/resend-otp", deps.AuthHandler.HandleResendOTP)
		r.Post("/logout", deps.AuthHandler.HandleLogout)
		r.Get("/otp-exp-time", deps.AuthHandler.HandleOTPExpTime)

		r.Post("/requestPasswordReset", deps.AuthHandler.HandleRequestPasswordReset)
		r.Post("/verifyCodeReset", deps.AuthHandler.HandleVerifyResetCode)
		r.Post("/resetPassword", deps.AuthHandler.HandleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Get("/user-data", deps.AuthHandler.HandleUserData)
		})
	})

	r.Route("/documents", func(r chi.Router) {
		// Open endpoints serve the public site.
		r.Get("/history/{title}", deps.DocumentHandler.HandleHistory)
		r.Get("/latest", deps.DocumentHandler.HandleLatest)
		r.Get("/deleted", deps.DocumentHandler.HandleDeleted)
		r.Get("/filter", deps.DocumentHandler.HandleFilter)

		r.Group(func(r chi.Router) {
			r.Use(guard)

			r.Get("/current", deps.DocumentHandler.HandleCurrent)
			r.Get("/getDocuments", deps.DocumentHandler.HandleGetAll)
			r.Get("/search", deps.DocumentHandler.HandleSearch)
			r.Get("/recent", deps.DocumentHandler.HandleRecent)
			r.Get("/version/{version}", deps.DocumentHandler.HandleGetByVersion)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin, model.RoleEmployee))
				r.Post("/create", deps.DocumentHandler.HandleCreate)
				r.Put("/{id}", deps.DocumentHandler.HandleUpdate)
				r.Patch("/{id}/setStatus", deps.DocumentHandler.HandleSetStatus)
				r.Get("/getdoc/{id}", deps.DocumentHandler.HandleGetByID)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin))
				r.Delete("/{id}", deps.DocumentHandler.HandleDelete)
				r.Patch("/{id}/status", deps.DocumentHandler.HandleActivate)
			})
		})
	})

	r.Route("/config", func(r chi.Router) {
		r.Use(guard)

		// Any authenticated account may raise or lower the attempt limit; the
		// remaining tunables are admin-only.
		r.Put("/maxLoginAttempts", deps.ConfigHandler.HandleUpdateMaxLoginAttempts)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))
			r.Get("/getConfig", deps.ConfigHandler.HandleGetConfig)
			r.Get("/getRecentUsers", deps.ConfigHandler.HandleRecentLockedUsers)
			r.Put("/activationMessage", deps.ConfigHandler.HandleUpdateActivationMessage)
			r.Put("/verificationToken", deps.ConfigHandler.HandleUpdateVerificationTokenLifetime)
			r.Put("/otpExpiration", deps.ConfigHandler.HandleUpdateOtpExpiration)
		})
	})

	// The front-display surface is consumed by the public site before any
	// session exists, so the whole group is unauthenticated.
	r.Route("/front", func(r chi.Router) {
		r.Get("/getConfig", deps.FrontHandler.HandleGetConfig)
		r.Get("/logoHistory", deps.FrontHandler.HandleLogoHistory)
		r.Put("/updateLogo", deps.FrontHandler.HandleUpdateLogo)
		r.Put("/logo/activate", deps.FrontHandler.HandleActivateLogo)
		r.Put("/updateData", deps.FrontHandler.HandleUpdateData)
		r.Get("/{type}", deps.FrontHandler.HandleGetSetting)
		r.Delete("/{type}", deps.FrontHandler.HandleDeleteSetting)
	})

	return r
}
