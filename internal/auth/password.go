package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the fixed work factor for password hashing.
const bcryptCost = 10

// HashPassword returns a salted one-way hash of the password.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether the password matches the stored hash.
// The comparison is constant-time via the bcrypt library itself.
func VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IsStrongPassword requires length >= 8 with at least one digit, one
// lowercase letter, one uppercase letter and one non-alphanumeric symbol.
func IsStrongPassword(plain string) bool {
	if len(plain) < 8 {
		return false
	}
	var hasDigit, hasLower, hasUpper, hasSymbol bool
	for _, c := range plain {
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		default:
			hasSymbol = true
		}
	}
	return hasDigit && hasLower && hasUpper && hasSymbol
}

// GenerateOTP returns a 6-digit one-time code drawn uniformly from [100000, 999999].
func GenerateOTP() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return 0, fmt.Errorf("generate OTP: %w", err)
	}
	return int(n.Int64()) + 100000, nil
}

// GenerateResetCode returns a 6-digit password-reset code as a string.
func GenerateResetCode() (string, error) {
	code, err := GenerateOTP()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", code), nil
}
