package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Domain errors for token checks.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrAuthDisabled = errors.New("authentication is disabled")
)

// AuthService verifies bearer tokens issued by the operator backend.
// Tokens are HS256-signed and carry the operator id in the user_id claim.
type AuthService struct {
	signingKey []byte
}

// NewAuthService returns a verifier for secret. An empty secret disables auth.
func NewAuthService(secret string) *AuthService {
	return &AuthService{signingKey: []byte(strings.TrimSpace(secret))}
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id"`
}

// Enabled reports whether requests must carry a token.
func (s *AuthService) Enabled() bool { return len(s.signingKey) > 0 }

// ParseToken parses JWT and returns userID
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	if !s.Enabled() {
		return 0, ErrAuthDisabled
	}
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

// IssueToken signs a token for userID. Used by tooling and tests; the
// service itself never hands out tokens.
func (s *AuthService) IssueToken(userID int, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", ErrAuthDisabled
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	})
	return token.SignedString(s.signingKey)
}
