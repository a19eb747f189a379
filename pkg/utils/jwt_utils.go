package utils

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenTTL is the lifetime of tokens minted by GenerateAccessToken.
const AccessTokenTTL = 12 * time.Hour

var (
	jwtMu        sync.RWMutex
	jwtSecretKey []byte
)

// ErrJWTSecretNotSet is returned when tokens are used before SetJWTSecret.
var ErrJWTSecretNotSet = errors.New("jwt secret is not configured")

// SetJWTSecret installs the HMAC key used to sign and verify tokens.
func SetJWTSecret(secret string) {
	jwtMu.Lock()
	defer jwtMu.Unlock()
	jwtSecretKey = []byte(secret)
}

func secret() ([]byte, error) {
	jwtMu.RLock()
	defer jwtMu.RUnlock()
	if len(jwtSecretKey) == 0 {
		return nil, ErrJWTSecretNotSet
	}
	return jwtSecretKey, nil
}

// Claims defines the JWT claims structure issued to staff terminals.
type Claims struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	TerminalID string `json:"terminal_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a token for a staff user on a terminal.
func GenerateAccessToken(userID int64, username, role, terminalID string) (string, error) {
	key, err := secret()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := &Claims{
		UserID:     userID,
		Username:   username,
		Role:       role,
		TerminalID: terminalID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "restaurant-pos",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token string.
// It returns the claims if the token is valid, otherwise an error.
func ValidateToken(tokenString string) (*Claims, error) {
	key, err := secret()
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
