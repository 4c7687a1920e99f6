package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/roster/internal/models"
	pkgauth "github.com/BradenHooton/roster/pkg/auth"
)

// EmailVerificationRepository defines the interface for email verification token operations
type EmailVerificationRepository interface {
	Create(ctx context.Context, userID int64, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error)
	GetLatestByUserID(ctx context.Context, userID int64) (*models.EmailVerificationToken, error)
	MarkAsUsed(ctx context.Context, id int64) error
	DeleteByUserID(ctx context.Context, userID int64) error
}

// EmailVerificationService handles email verification business logic
type EmailVerificationService struct {
	repo           EmailVerificationRepository
	users          UserRepository
	mailer         Mailer
	audit          *AuditService
	logger         *slog.Logger
	tokenExpiry    time.Duration
	resendCooldown time.Duration
}

func NewEmailVerificationService(
	repo EmailVerificationRepository,
	users UserRepository,
	mailer Mailer,
	audit *AuditService,
	logger *slog.Logger,
	tokenExpiry time.Duration,
) *EmailVerificationService {
	return &EmailVerificationService{
		repo:           repo,
		users:          users,
		mailer:         mailer,
		audit:          audit,
		logger:         logger,
		tokenExpiry:    tokenExpiry,
		resendCooldown: time.Minute,
	}
}

// Send replaces any pending token of user and mails a fresh one
func (s *EmailVerificationService) Send(ctx context.Context, user *models.User) error {
	plainToken, err := pkgauth.GenerateToken()
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.DeleteByUserID(ctx, user.ID); err != nil {
		s.logger.Warn("failed to delete previous verification tokens",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
	}

	expiresAt := time.Now().Add(s.tokenExpiry)
	if _, err := s.repo.Create(ctx, user.ID, pkgauth.HashToken(plainToken), user.Email, expiresAt); err != nil {
		s.logger.Error("failed to create email verification token",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.mailer.SendVerification(ctx, user.Email, plainToken, expiresAt); err != nil {
		s.logger.Error("failed to send verification email",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrDependency
	}

	s.logger.Info("verification email sent", slog.Int64("user_id", user.ID))
	return nil
}

// Verify consumes plainToken and marks the owner's email verified. The
// token must still match the user's current email address.
func (s *EmailVerificationService) Verify(ctx context.Context, plainToken string) (*models.User, error) {
	if plainToken == "" {
		return nil, models.ErrBadRequest
	}

	token, err := s.repo.GetByTokenHash(ctx, pkgauth.HashToken(plainToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrBadRequest
		}
		s.logger.Error("failed to retrieve verification token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !token.IsValid() {
		s.logger.Info("rejected used or expired verification token", slog.Int64("token_id", token.ID))
		return nil, models.ErrBadRequest
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrBadRequest
		}
		s.logger.Error("failed to load user for verification", slog.Int64("user_id", token.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if user.Email != token.Email {
		return nil, models.ErrBadRequest
	}

	if err := s.repo.MarkAsUsed(ctx, token.ID); err != nil {
		s.logger.Error("failed to mark token as used", slog.Int64("token_id", token.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.IsVerified() {
		return user, nil
	}

	verified := true
	user, err = s.users.Update(ctx, user.ID, models.UserChanges{EmailVerified: &verified})
	if err != nil {
		s.logger.Error("failed to mark email verified", slog.Int64("user_id", token.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Success(ctx, models.AuditEventEmailVerify, models.AuditActionUpdate, &user.ID, &user.ID, nil)
	return user, nil
}

// Resend mails a new token unless the user is verified or asked within the cooldown
func (s *EmailVerificationService) Resend(ctx context.Context, user *models.User) error {
	if user.IsVerified() {
		return models.ErrAlreadyVerified
	}

	latest, err := s.repo.GetLatestByUserID(ctx, user.ID)
	switch {
	case err == nil:
		if time.Since(latest.CreatedAt) < s.resendCooldown {
			return models.ErrTooManyRequests
		}
	case !errors.Is(err, models.ErrNotFound):
		s.logger.Error("failed to check latest verification token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	return s.Send(ctx, user)
}
