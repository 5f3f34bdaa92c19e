// jwt.go handles bearer token creation and verification for the API. Tokens
// carry only the subject user id; the actor's current role and display name are
// resolved from the user directory on every request so role changes take effect
// immediately without reissuing tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "scholaris"

var (
	jwtSecret []byte

	// ErrNoSecret is returned when token operations are attempted before
	// SetJWTSecret has been called with a non-empty secret.
	ErrNoSecret = errors.New("jwt secret is not configured")
)

// Claims is the JWT claims structure for API tokens.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// SetJWTSecret installs the signing secret. Called once at startup from
// configuration; a secret shorter than 32 bytes is rejected.
func SetJWTSecret(secret string) error {
	if secret == "" {
		return ErrNoSecret
	}
	if len(secret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 bytes, got %d", len(secret))
	}
	jwtSecret = []byte(secret)
	return nil
}

// GenerateToken creates a signed token for the given user.
func GenerateToken(userID int64, expiresIn time.Duration) (string, error) {
	if len(jwtSecret) == 0 {
		return "", ErrNoSecret
	}
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    tokenIssuer,
			Subject:   fmt.Sprintf("%d", userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateToken parses and verifies a token, returning its claims.
func ValidateToken(tokenString string) (*Claims, error) {
	if len(jwtSecret) == 0 {
		return nil, ErrNoSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
