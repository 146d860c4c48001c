package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/email"
	"github.com/cuidamed/backend/internal/model"
	"github.com/cuidamed/backend/internal/repo"
	"github.com/cuidamed/backend/internal/settings"
)

// resetCodeLifetime is fixed; the reset flow is not config-driven.
const resetCodeLifetime = 1 * time.Hour

// Service orchestrates registration, verification, the two-phase login and
// the password-recovery flow.
type Service struct {
	userRepo   repo.UserRepo
	jwtService *JWTService
	lockout    *LockoutPolicy
	captcha    CaptchaVerifier
	mail       email.Sender
	settings   settings.Provider
	clientURL  string
}

// NewService creates a new auth service
func NewService(
	userRepo repo.UserRepo,
	jwtService *JWTService,
	lockout *LockoutPolicy,
	captcha CaptchaVerifier,
	mail email.Sender,
	provider settings.Provider,
	clientURL string,
) *Service {
	return &Service{
		userRepo:   userRepo,
		jwtService: jwtService,
		lockout:    lockout,
		captcha:    captcha,
		mail:       mail,
		settings:   provider,
		clientURL:  clientURL,
	}
}

// Register validates input, checks the CAPTCHA assertion, stores the account
// as inactive and emails a signed, time-bounded verification link.
func (s *Service) Register(ctx context.Context, emailAddr, password, fullName, captchaToken, remoteIP string) error {
	if !IsStrongPassword(password) {
		return ErrWeakPassword
	}
	if err := s.captcha.Verify(ctx, captchaToken, remoteIP); err != nil {
		return err
	}

	_, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err == nil {
		return ErrEmailTaken
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("lookup account: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	account := &model.Account{
		Email:        emailAddr,
		FullName:     fullName,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Status:       model.AccountInactive,
	}
	if err := s.userRepo.Create(ctx, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	return s.issueVerification(ctx, account)
}

// ResendVerification reissues a fresh verification token, overwriting any
// prior one, and resends the email. Rejected once the account is active.
func (s *Service) ResendVerification(ctx context.Context, emailAddr string) error {
	account, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}
	if account.Status == model.AccountActive {
		return ErrAlreadyVerified
	}
	return s.issueVerification(ctx, &account)
}

// issueVerification signs a token with the configured lifetime, stores it in
// the account's single verification-token slot and sends the email.
func (s *Service) issueVerification(ctx context.Context, account *model.Account) error {
	lifetime, err := s.settings.GetInt(ctx, settings.KeyVerificationTokenLifetime, settings.DefaultVerificationTokenLifetime)
	if err != nil {
		return err
	}

	token, err := s.jwtService.SignVerificationToken(account.ID, time.Duration(lifetime)*time.Minute)
	if err != nil {
		return err
	}
	if err := s.userRepo.SetVerificationToken(ctx, account.ID, token); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	activationMessage, err := s.settings.GetString(ctx, settings.KeyActivationMessage)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/verify-email?token=%s", s.clientURL, token)
	if err := s.mail.SendVerification(ctx, account.Email, account.FullName, link, lifetime, activationMessage); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// VerifyAccount redeems a verification token: decodes and validates it, then
// activates the embedded account. A second redemption fails because the
// account is already active.
func (s *Service) VerifyAccount(ctx context.Context, token string) error {
	claims, err := s.jwtService.VerifyToken(token)
	if err != nil {
		return ErrInvalidToken
	}

	account, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup account: %w", err)
	}
	if account.Status == model.AccountActive {
		return ErrAlreadyVerified
	}

	if err := s.userRepo.Activate(ctx, account.ID); err != nil {
		return fmt.Errorf("activate account: %w", err)
	}
	return nil
}

// Login is phase 1 of the two-phase login: credentials only. On success an OTP
// is generated, stored with its configured lifetime and emailed; the returned
// account ID is the handle for phase 2. No session credential is issued here.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (uuid.UUID, error) {
	account, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return uuid.Nil, ErrUnknownEmail
		}
		return uuid.Nil, fmt.Errorf("lookup account: %w", err)
	}

	if err := s.lockout.CheckAllowed(&account, time.Now()); err != nil {
		return uuid.Nil, err
	}

	if !VerifyPassword(password, account.PasswordHash) {
		return uuid.Nil, s.lockout.OnFailure(ctx, account.ID)
	}
	if err := s.lockout.OnSuccess(ctx, account.ID); err != nil {
		return uuid.Nil, err
	}

	if err := s.issueOTP(ctx, &account); err != nil {
		return uuid.Nil, err
	}
	return account.ID, nil
}

// ResendOTP regenerates the code and expiry and resends the email. It has no
// lockout interaction.
func (s *Service) ResendOTP(ctx context.Context, accountID uuid.UUID) error {
	account, err := s.userRepo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}
	return s.issueOTP(ctx, &account)
}

// issueOTP stores a fresh code with the OtpExpTime lifetime and emails it.
func (s *Service) issueOTP(ctx context.Context, account *model.Account) error {
	otp, err := GenerateOTP()
	if err != nil {
		return err
	}
	lifetime, err := s.settings.GetInt(ctx, settings.KeyOtpExpTime, settings.DefaultOtpLifetime)
	if err != nil {
		return err
	}
	expires := time.Now().Add(time.Duration(lifetime) * time.Minute)

	if err := s.userRepo.SetOTP(ctx, account.ID, otp, expires); err != nil {
		return fmt.Errorf("store OTP: %w", err)
	}
	if err := s.mail.SendOTP(ctx, account.Email, otp); err != nil {
		return fmt.Errorf("send OTP email: %w", err)
	}
	return nil
}

// VerifyOTP is phase 2 of login. On a matching, unexpired code the OTP fields
// are cleared and a signed session credential is returned; this is the only
// point session material is created.
func (s *Service) VerifyOTP(ctx context.Context, accountID uuid.UUID, otp int) (string, error) {
	account, err := s.userRepo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrInvalidOTP
		}
		return "", fmt.Errorf("lookup account: %w", err)
	}

	if account.OTP == nil || *account.OTP != otp ||
		account.OTPExpires == nil || time.Now().After(*account.OTPExpires) {
		return "", ErrInvalidOTP
	}

	if err := s.userRepo.ClearOTP(ctx, account.ID); err != nil {
		return "", fmt.Errorf("clear OTP: %w", err)
	}

	token, err := s.jwtService.SignSessionToken(account.ID, account.Role)
	if err != nil {
		return "", err
	}
	return token, nil
}

// RequestPasswordReset generates a numeric reset code with a fixed 1-hour
// expiry and emails it.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	account, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	code, err := GenerateResetCode()
	if err != nil {
		return err
	}
	expires := time.Now().Add(resetCodeLifetime)
	if err := s.userRepo.SetResetCode(ctx, account.ID, code, expires); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}
	if err := s.mail.SendResetCode(ctx, account.Email, code); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// VerifyResetCode checks code equality and non-expiry for the account. The
// code is not consumed; it stays valid for the final reset step.
func (s *Service) VerifyResetCode(ctx context.Context, emailAddr, code string) error {
	account, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidResetCode
		}
		return fmt.Errorf("lookup account: %w", err)
	}
	if account.ResetCode == nil || *account.ResetCode != code ||
		account.ResetExpires == nil || time.Now().After(*account.ResetExpires) {
		return ErrInvalidResetCode
	}
	return nil
}

// ResetPassword completes the recovery flow: the account is located by its
// unexpired reset code, the new password must differ from the current one,
// and storing the new hash invalidates the code.
func (s *Service) ResetPassword(ctx context.Context, code, newPassword string) error {
	if !IsStrongPassword(newPassword) {
		return ErrWeakPassword
	}

	account, err := s.userRepo.GetByValidResetCode(ctx, code, time.Now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidResetCode
		}
		return fmt.Errorf("lookup account by reset code: %w", err)
	}

	if VerifyPassword(newPassword, account.PasswordHash) {
		return ErrSamePassword
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, account.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
