package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/models"
	pkgauth "github.com/BradenHooton/roster/pkg/auth"
)

// PasswordResetRepository stores one outstanding reset token per email
type PasswordResetRepository interface {
	Replace(ctx context.Context, email, tokenHash string, expiresAt time.Time) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	DeleteByEmail(ctx context.Context, email string) error
}

// PasswordService handles the forgot/reset password flow
type PasswordService struct {
	resets PasswordResetRepository
	users  UserRepository
	tokens TokenRepository
	mailer Mailer
	audit  *AuditService
	timing *auth.TimingDelay
	logger *slog.Logger
	expiry time.Duration
}

func NewPasswordService(
	resets PasswordResetRepository,
	users UserRepository,
	tokens TokenRepository,
	mailer Mailer,
	audit *AuditService,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	expiry time.Duration,
) *PasswordService {
	return &PasswordService{
		resets: resets,
		users:  users,
		tokens: tokens,
		mailer: mailer,
		audit:  audit,
		timing: timing,
		logger: logger,
		expiry: expiry,
	}
}

// Forgot mails a reset token when email belongs to a live account. It
// never reports whether the account exists.
func (s *PasswordService) Forgot(ctx context.Context, email string) error {
	start := time.Now()
	defer s.timing.WaitFrom(start)

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		}
		return nil
	}

	plainToken, err := pkgauth.GenerateToken()
	if err != nil {
		s.logger.Error("failed to generate password reset token", slog.Any("error", err))
		return nil
	}

	expiresAt := time.Now().Add(s.expiry)
	if err := s.resets.Replace(ctx, user.Email, pkgauth.HashToken(plainToken), expiresAt); err != nil {
		s.logger.Error("failed to store password reset token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, plainToken, expiresAt); err != nil {
		s.logger.Error("failed to send password reset email", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	return nil
}

// Reset sets a new password for the owner of plainToken and revokes every
// access token the user holds.
func (s *PasswordService) Reset(ctx context.Context, plainToken, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	token, err := s.resets.GetByTokenHash(ctx, pkgauth.HashToken(plainToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrBadRequest
		}
		s.logger.Error("failed to retrieve password reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if token.IsExpired() || token.Email != email {
		return models.ErrBadRequest
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrBadRequest
		}
		s.logger.Error("failed to load user for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.users.Update(ctx, user.ID, models.UserChanges{PasswordHash: &hash}); err != nil {
		s.logger.Error("failed to update password", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.resets.DeleteByEmail(ctx, email); err != nil {
		s.logger.Warn("failed to delete password reset tokens", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	if _, err := s.tokens.DeleteAllForUser(ctx, user.ID); err != nil {
		s.logger.Error("failed to revoke access tokens after password reset", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}

	s.audit.Success(ctx, models.AuditEventPasswordReset, models.AuditActionUpdate, &user.ID, &user.ID, nil)
	s.logger.Info("password reset", slog.Int64("user_id", user.ID))
	return nil
}
