package config

import (
	"fmt"
	"os"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string
	JWTSecret   string
	ClientURL   string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	MailFrom string

	RecaptchaSecret string

	DevMode bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:      "8080", // default port
		ClientURL: "http://localhost:3000",
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTSecret = jwtSecret

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		cfg.ClientURL = clientURL
	}

	// SMTP settings are optional: when SMTP_HOST is unset the mail sender
	// falls back to logging outbound messages (dev mode delivery).
	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPPort = os.Getenv("SMTP_PORT")
	if cfg.SMTPPort == "" {
		cfg.SMTPPort = "587"
	}
	cfg.SMTPUser = os.Getenv("SMTP_USER")
	cfg.SMTPPass = os.Getenv("SMTP_PASS")
	cfg.MailFrom = os.Getenv("MAIL_FROM")
	if cfg.MailFrom == "" {
		cfg.MailFrom = cfg.SMTPUser
	}

	// Optional: CAPTCHA verification is skipped when the secret is unset.
	cfg.RecaptchaSecret = os.Getenv("RECAPTCHA_SECRET_KEY")

	cfg.DevMode = os.Getenv("DEV_MODE") == "true"

	return cfg, nil
}
