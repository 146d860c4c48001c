package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cuidamed/backend/internal/model"
)

// sessionTokenExpiry is the fixed validity window of a session credential.
// Logout clears the cookie; there is no server-side revocation list, so expiry
// is the only bound on a token's lifetime.
const sessionTokenExpiry = 1 * time.Hour

// Claims are carried by both verification tokens and session tokens; Role is
// only set on session tokens.
type Claims struct {
	UserID uuid.UUID  `json:"userId"`
	Role   model.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies the application's HS256 tokens
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// SignVerificationToken creates a time-bounded token embedding the account
// identity, used in the account-activation email link.
func (s *JWTService) SignVerificationToken(userID uuid.UUID, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return signed, nil
}

// SignSessionToken creates the session credential embedding identity and role.
func (s *JWTService) SignSessionToken(userID uuid.UUID, role model.Role) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// VerifyToken verifies signature and expiry and returns the decoded claims.
func (s *JWTService) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
