package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/BradenHooton/roster/internal/models"
)

const issuer = "roster"

// TokenManager signs and parses bearer tokens. Every token carries the
// token_id of its personal_access_tokens row as jti; deleting the row
// revokes the token.
type TokenManager struct {
	secret []byte
	expiry time.Duration
}

func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Expiry is the lifetime of newly issued tokens
func (tm *TokenManager) Expiry() time.Duration {
	return tm.expiry
}

// NewTokenID returns a fresh jti for a token about to be persisted
func NewTokenID() string {
	return uuid.NewString()
}

// Sign creates a token for userID bound to tokenID
func (tm *TokenManager) Sign(userID int64, email, tokenID string, expiresAt time.Time) (string, error) {
	now := time.Now()

	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature, expiry and issuer of a token and returns its claims
func (tm *TokenManager) Parse(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid || claims.ID == "" || claims.UserID == 0 {
		return nil, models.ErrUnauthorized
	}
	return claims, nil
}
