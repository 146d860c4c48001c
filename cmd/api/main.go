package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/cuidamed/backend/internal/audit"
	"github.com/cuidamed/backend/internal/auth"
	"github.com/cuidamed/backend/internal/config"
	"github.com/cuidamed/backend/internal/db"
	"github.com/cuidamed/backend/internal/docs"
	"github.com/cuidamed/backend/internal/email"
	httpserver "github.com/cuidamed/backend/internal/http"
	"github.com/cuidamed/backend/internal/http/handlers"
	"github.com/cuidamed/backend/internal/metrics"
	"github.com/cuidamed/backend/internal/repo"
	"github.com/cuidamed/backend/internal/settings"
)

func main() {
	// Load .env from CWD so it works from repo root (env vars override)
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	userRepo := repo.NewUserRepo(database)
	docRepo := repo.NewDocumentRepo(database)
	archiveRepo := repo.NewArchiveRepo(database)
	configRepo := repo.NewConfigRepo(database)
	auditRepo := repo.NewAuditRepo(database)
	frontRepo := repo.NewFrontRepo(database)

	// Services
	settingsStore := settings.NewStore(configRepo)
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	lockout := auth.NewLockoutPolicy(userRepo, settingsStore)

	var captcha auth.CaptchaVerifier = auth.NoopCaptchaVerifier{}
	if cfg.RecaptchaSecret != "" && !cfg.DevMode {
		captcha = auth.NewRecaptchaVerifier(cfg.RecaptchaSecret)
	} else {
		log.Println("CAPTCHA verification disabled")
	}

	var mail email.Sender = email.LogSender{}
	if cfg.SMTPHost != "" {
		mail = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	} else {
		log.Println("SMTP not configured, outbound mail is logged only")
	}

	authService := auth.NewService(userRepo, jwtService, lockout, captcha, mail, settingsStore, cfg.ClientURL)
	recorder := audit.NewRecorder(auditRepo)
	engine := docs.NewEngine(docRepo, archiveRepo, recorder)

	metrics.MustRegister()

	secureCookies := !cfg.DevMode

	router := httpserver.NewRouter(httpserver.RouterDeps{
		DB:              database,
		JWTService:      jwtService,
		AuthHandler:     handlers.NewAuthHandler(authService, settingsStore, secureCookies),
		DocumentHandler: handlers.NewDocumentHandler(engine),
		ConfigHandler:   handlers.NewConfigHandler(settingsStore, userRepo),
		FrontHandler:    handlers.NewFrontHandler(frontRepo),
		SecureCookies:   secureCookies,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from repo root)")
	}

	absDir, _ := filepath.Abs(migrationDir)
	log.Printf("Running migrations from %s", absDir)

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
