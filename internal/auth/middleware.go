package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/roster/internal/models"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller of a request
type Principal struct {
	User        *models.User
	Token       *models.AccessToken
	Permissions []string
}

// Can reports whether the caller holds permission
func (p *Principal) Can(permission string) bool {
	return models.HasPermission(p.Permissions, permission)
}

// TokenStore looks up and touches persisted access tokens
type TokenStore interface {
	GetByTokenID(ctx context.Context, tokenID string) (*models.AccessToken, error)
	Touch(ctx context.Context, id int64) error
}

// UserLoader loads the user behind a token
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Permissions(ctx context.Context, userID int64) ([]string, error)
}

// Authenticate resolves the bearer token to a Principal. The token must
// still exist in personal_access_tokens and belong to an active user.
func Authenticate(tm *TokenManager, tokens TokenStore, users UserLoader, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Unauthenticated.")
				return
			}

			claims, err := tm.Parse(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Unauthenticated.")
				return
			}

			ctx := r.Context()

			token, err := tokens.GetByTokenID(ctx, claims.ID)
			if err != nil {
				if !errors.Is(err, models.ErrNotFound) {
					logger.Error("failed to load access token", slog.Any("error", err))
				}
				pkghttp.WriteUnauthorized(w, "Unauthenticated.")
				return
			}
			if token.IsExpired() || token.UserID != claims.UserID {
				pkghttp.WriteUnauthorized(w, "Unauthenticated.")
				return
			}

			user, err := users.GetByID(ctx, token.UserID)
			if err != nil {
				if !errors.Is(err, models.ErrNotFound) {
					logger.Error("failed to load token owner", slog.Int64("user_id", token.UserID), slog.Any("error", err))
				}
				pkghttp.WriteUnauthorized(w, "Unauthenticated.")
				return
			}
			if !user.Active {
				pkghttp.WriteUnauthorized(w, "Account is inactive.")
				return
			}

			permissions, err := users.Permissions(ctx, user.ID)
			if err != nil {
				logger.Error("failed to load permissions", slog.Int64("user_id", user.ID), slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Something went wrong.")
				return
			}

			if err := tokens.Touch(ctx, token.ID); err != nil {
				logger.Warn("failed to touch access token", slog.Int64("token_id", token.ID), slog.Any("error", err))
			}
			now := time.Now()
			token.LastUsedAt = &now

			principal := &Principal{User: user, Token: token, Permissions: permissions}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

// RequireVerified rejects callers whose email address is unverified
func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			pkghttp.WriteUnauthorized(w, "Unauthenticated.")
			return
		}
		if !p.User.IsVerified() {
			pkghttp.WriteForbidden(w, "Your email address is not verified.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission rejects callers lacking permission
func RequirePermission(permission string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				pkghttp.WriteUnauthorized(w, "Unauthenticated.")
				return
			}
			if !p.Can(permission) {
				pkghttp.WriteForbidden(w, "This action is unauthorized.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns nil outside authenticated routes
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
