package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/model"
)

// UserRepo defines the interface for account repository operations
type UserRepo interface {
	Create(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)

	SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error
	Activate(ctx context.Context, id uuid.UUID) error

	IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error)
	Lock(ctx context.Context, id uuid.UUID, until time.Time) error
	ResetLoginFailures(ctx context.Context, id uuid.UUID) error
	RecentlyLocked(ctx context.Context, since time.Time) ([]model.Account, error)

	SetOTP(ctx context.Context, id uuid.UUID, otp int, expires time.Time) error
	ClearOTP(ctx context.Context, id uuid.UUID) error

	SetResetCode(ctx context.Context, id uuid.UUID, code string, expires time.Time) error
	GetByValidResetCode(ctx context.Context, code string, now time.Time) (model.Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const accountColumns = `
	id, email, full_name, password_hash, role, status,
	failed_attempts, locked_until, otp, otp_expires,
	reset_code, reset_expires, verification_token, created_at
`

func scanAccount(row *sql.Row) (model.Account, error) {
	var a model.Account
	var idStr string
	err := row.Scan(
		&idStr,
		&a.Email,
		&a.FullName,
		&a.PasswordHash,
		&a.Role,
		&a.Status,
		&a.FailedAttempts,
		&a.LockedUntil,
		&a.OTP,
		&a.OTPExpires,
		&a.ResetCode,
		&a.ResetExpires,
		&a.VerificationToken,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("query account: %w", err)
	}
	a.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Account{}, fmt.Errorf("parse account ID: %w", err)
	}
	return a, nil
}

// Create inserts a new account and fills in its generated ID.
func (r *userRepo) Create(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO users (email, full_name, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	var idStr string
	err := r.db.QueryRowContext(ctx, query,
		account.Email,
		account.FullName,
		account.PasswordHash,
		account.Role,
		account.Status,
	).Scan(&idStr, &account.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	account.ID, err = uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse account ID: %w", err)
	}
	return nil
}

// GetByID retrieves an account by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves an account by email
func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE email = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

// SetVerificationToken overwrites the single verification-token slot.
func (r *userRepo) SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error {
	return r.exec(ctx, `UPDATE users SET verification_token = $2 WHERE id = $1`, id, token)
}

// Activate flips status to active and clears the verification token.
func (r *userRepo) Activate(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `
		UPDATE users SET status = 'active', verification_token = NULL WHERE id = $1
	`, id)
}

// IncrementFailedAttempts bumps the failure counter atomically and returns the new value.
func (r *userRepo) IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET failed_attempts = failed_attempts + 1
		WHERE id = $1
		RETURNING failed_attempts
	`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment failed attempts: %w", err)
	}
	return count, nil
}

// Lock sets the lockout window and resets the failure counter to zero.
func (r *userRepo) Lock(ctx context.Context, id uuid.UUID, until time.Time) error {
	return r.exec(ctx, `
		UPDATE users SET locked_until = $2, failed_attempts = 0 WHERE id = $1
	`, id, until)
}

// ResetLoginFailures clears the failure counter and any lockout window.
func (r *userRepo) ResetLoginFailures(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `
		UPDATE users SET failed_attempts = 0, locked_until = NULL WHERE id = $1
	`, id)
}

// RecentlyLocked returns accounts whose lockout window started after the given time.
func (r *userRepo) RecentlyLocked(ctx context.Context, since time.Time) ([]model.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, full_name, locked_until
		FROM users
		WHERE locked_until IS NOT NULL AND locked_until >= $1
		ORDER BY locked_until DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query recently locked: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		var idStr string
		if err := rows.Scan(&idStr, &a.Email, &a.FullName, &a.LockedUntil); err != nil {
			return nil, fmt.Errorf("scan locked account: %w", err)
		}
		a.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse account ID: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetOTP stores a fresh one-time code and its expiry, replacing any prior one.
func (r *userRepo) SetOTP(ctx context.Context, id uuid.UUID, otp int, expires time.Time) error {
	return r.exec(ctx, `
		UPDATE users SET otp = $2, otp_expires = $3 WHERE id = $1
	`, id, otp, expires)
}

// ClearOTP removes the one-time code after successful verification.
func (r *userRepo) ClearOTP(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `UPDATE users SET otp = NULL, otp_expires = NULL WHERE id = $1`, id)
}

// SetResetCode stores a password-reset code and its expiry.
func (r *userRepo) SetResetCode(ctx context.Context, id uuid.UUID, code string, expires time.Time) error {
	return r.exec(ctx, `
		UPDATE users SET reset_code = $2, reset_expires = $3 WHERE id = $1
	`, id, code, expires)
}

// GetByValidResetCode finds the account holding an unexpired reset code.
func (r *userRepo) GetByValidResetCode(ctx context.Context, code string, now time.Time) (model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE reset_code = $1 AND reset_expires > $2`
	return scanAccount(r.db.QueryRowContext(ctx, query, code, now))
}

// UpdatePassword stores a new password hash and invalidates the reset code.
func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.exec(ctx, `
		UPDATE users
		SET password_hash = $2, reset_code = NULL, reset_expires = NULL
		WHERE id = $1
	`, id, passwordHash)
}

// exec runs an UPDATE expected to touch exactly one account row.
func (r *userRepo) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
