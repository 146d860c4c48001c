package auth

import "errors"

// Domain errors surfaced by the authentication flows. Handlers map these to
// HTTP statuses; anything else is an infrastructure failure and becomes a 500.
var (
	ErrEmailTaken        = errors.New("email already registered")
	ErrUnknownEmail      = errors.New("user not registered")
	ErrAccountInactive   = errors.New("please verify your account")
	ErrAccountLocked     = errors.New("account temporarily locked, try again later")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrWeakPassword      = errors.New("password must be at least 8 characters with an uppercase letter, a lowercase letter, a digit and a symbol")
	ErrCaptchaFailed     = errors.New("CAPTCHA verification failed")
	ErrAlreadyVerified   = errors.New("account is already verified")
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrInvalidOTP        = errors.New("incorrect or expired OTP code")
	ErrInvalidResetCode  = errors.New("invalid or expired code")
	ErrSamePassword      = errors.New("new password cannot be the same as the previous one")
	ErrUserNotFound      = errors.New("user not found")
)
