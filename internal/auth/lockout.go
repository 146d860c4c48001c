package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/model"
	"github.com/cuidamed/backend/internal/repo"
	"github.com/cuidamed/backend/internal/settings"
)

// LockoutPolicy tracks failed login attempts and applies the temporary lockout
// window per account. Thresholds are read from the settings provider on every
// attempt so administrative changes take effect immediately.
type LockoutPolicy struct {
	userRepo repo.UserRepo
	settings settings.Provider
}

// NewLockoutPolicy creates a new lockout policy
func NewLockoutPolicy(userRepo repo.UserRepo, provider settings.Provider) *LockoutPolicy {
	return &LockoutPolicy{userRepo: userRepo, settings: provider}
}

// CheckAllowed rejects login attempts before the password is ever consulted:
// inactive accounts and accounts inside a lockout window are turned away
// without touching the failure counter.
func (p *LockoutPolicy) CheckAllowed(account *model.Account, now time.Time) error {
	if account.Status != model.AccountActive {
		return ErrAccountInactive
	}
	if account.Locked(now) {
		return ErrAccountLocked
	}
	return nil
}

// OnFailure records a failed password check. When the incremented counter
// reaches the configured maximum the account is locked for the configured
// number of minutes and the counter is reset to zero; the returned error is
// ErrAccountLocked in that case and ErrIncorrectPassword otherwise.
func (p *LockoutPolicy) OnFailure(ctx context.Context, accountID uuid.UUID) error {
	maxAttempts, err := p.settings.GetInt(ctx, settings.KeyMaxLoginAttempts, settings.DefaultMaxLoginAttempts)
	if err != nil {
		return fmt.Errorf("read max attempts: %w", err)
	}
	lockMinutes, err := p.settings.GetInt(ctx, settings.KeyLockoutMinutes, settings.DefaultLockoutMinutes)
	if err != nil {
		return fmt.Errorf("read lockout minutes: %w", err)
	}

	attempts, err := p.userRepo.IncrementFailedAttempts(ctx, accountID)
	if err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}

	if attempts >= maxAttempts {
		until := time.Now().Add(time.Duration(lockMinutes) * time.Minute)
		if err := p.userRepo.Lock(ctx, accountID, until); err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		return ErrAccountLocked
	}
	return ErrIncorrectPassword
}

// OnSuccess resets the failure counter and clears any lockout window.
func (p *LockoutPolicy) OnSuccess(ctx context.Context, accountID uuid.UUID) error {
	if err := p.userRepo.ResetLoginFailures(ctx, accountID); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}
