package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a persisted bearer token. The JWT carries TokenID as its jti,
// so deleting the row revokes the token.
type AccessToken struct {
	ID         int64
	UserID     int64
	Name       string
	TokenID    string
	LastUsedAt *time.Time
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// IsExpired checks if the token has expired
func (t *AccessToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

type TokenClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
