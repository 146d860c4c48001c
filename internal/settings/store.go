// Package settings exposes the DB-backed runtime tunables (lockout thresholds,
// token lifetimes, display messages). Values are reread on every call so
// administrative changes take effect on the next request; nothing is cached.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cuidamed/backend/internal/repo"
)

// Well-known config keys.
const (
	KeyVerificationTokenLifetime = "verificationTokenLifetime"
	KeyOtpLifetime               = "otpLifetime"
	KeyOtpExpTime                = "OtpExpTime"
	KeyMaxLoginAttempts          = "max_intents"
	KeyLockoutMinutes            = "bloqueo_tiempo"
	KeyActivationMessage         = "activationMessage"
	KeyExpiredTime               = "expired_time"
)

// Defaults applied when a numeric key is absent or malformed.
const (
	DefaultVerificationTokenLifetime = 60 // minutes
	DefaultOtpLifetime               = 5  // minutes
	DefaultMaxLoginAttempts          = 3
	DefaultLockoutMinutes            = 15
)

// numericKeys is the allow-list of keys coerced to integers by GetValue.
var numericKeys = map[string]bool{
	KeyVerificationTokenLifetime: true,
	KeyOtpLifetime:               true,
	KeyMaxLoginAttempts:          true,
	KeyLockoutMinutes:            true,
}

// Provider is the configuration-provider capability handed to operations that
// need tunables. It is an interface so tests can substitute fixed values.
type Provider interface {
	// GetValue returns the stored value for a key, coerced to int for keys on
	// the numeric allow-list. Returns (nil, nil) when the key is absent.
	GetValue(ctx context.Context, key string) (any, error)
	// GetInt returns a numeric config value, falling back to def when the key
	// is absent or the stored value is not a valid integer.
	GetInt(ctx context.Context, key string, def int) (int, error)
	// GetString returns the raw stored value, or "" when absent.
	GetString(ctx context.Context, key string) (string, error)
	// Set upserts the value for a key.
	Set(ctx context.Context, key, value string) error
}

// Store is the DB-backed Provider.
type Store struct {
	configRepo repo.ConfigRepo
}

// NewStore creates a new settings store
func NewStore(configRepo repo.ConfigRepo) *Store {
	return &Store{configRepo: configRepo}
}

func (s *Store) GetValue(ctx context.Context, key string) (any, error) {
	entry, err := s.configRepo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get config %q: %w", key, err)
	}
	if numericKeys[key] {
		n, err := strconv.Atoi(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("config %q is not numeric: %w", key, err)
		}
		return n, nil
	}
	return entry.Value, nil
}

func (s *Store) GetInt(ctx context.Context, key string, def int) (int, error) {
	entry, err := s.configRepo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return def, nil
		}
		return 0, fmt.Errorf("get config %q: %w", key, err)
	}
	n, err := strconv.Atoi(entry.Value)
	if err != nil {
		return def, nil
	}
	return n, nil
}

func (s *Store) GetString(ctx context.Context, key string) (string, error) {
	entry, err := s.configRepo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get config %q: %w", key, err)
	}
	return entry.Value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.configRepo.Set(ctx, key, value)
}
