package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/events"
	"github.com/BradenHooton/roster/internal/models"
	pkgauth "github.com/BradenHooton/roster/pkg/auth"
)

// TokenRepository persists issued access tokens
type TokenRepository interface {
	Create(ctx context.Context, userID int64, name, tokenID string, expiresAt time.Time) (*models.AccessToken, error)
	ListByUser(ctx context.Context, userID int64) ([]models.AccessToken, error)
	DeleteByTokenID(ctx context.Context, tokenID string) error
	DeleteForUser(ctx context.Context, userID int64, ids []int64) (int64, error)
	DeleteAllForUser(ctx context.Context, userID int64) (int64, error)
}

// TokenSigner issues signed bearer tokens
type TokenSigner interface {
	Sign(userID int64, email, tokenID string, expiresAt time.Time) (string, error)
	Expiry() time.Duration
}

const defaultClientName = "api_token"

// RegisterInput is a self-service sign up
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Profile  models.UserProfile
}

// LoginResult is an issued access token
type LoginResult struct {
	Token     string
	TokenName string
	ExpiresAt time.Time
	User      *models.User
}

// AuthService handles authentication business logic
type AuthService struct {
	users        UserRepository
	tokens       TokenRepository
	signer       TokenSigner
	checks       accountChecks
	verification *EmailVerificationService
	mailer       Mailer
	events       events.Publisher
	audit        *AuditService
	timing       *auth.TimingDelay
	logger       *slog.Logger
}

func NewAuthService(
	users UserRepository,
	tokens TokenRepository,
	countries CountryRepository,
	signer TokenSigner,
	verification *EmailVerificationService,
	mailer Mailer,
	publisher events.Publisher,
	audit *AuditService,
	timing *auth.TimingDelay,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:        users,
		tokens:       tokens,
		signer:       signer,
		checks:       accountChecks{users: users, countries: countries},
		verification: verification,
		mailer:       mailer,
		events:       publisher,
		audit:        audit,
		timing:       timing,
		logger:       logger,
	}
}

// Register creates a standard_user account, sends the welcome and
// verification mails and signs the new user in. Mail failures do not undo
// the registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, clientName string) (*LoginResult, error) {
	if err := s.checks.validate(ctx, nil, &in.Email, &in.Username, in.Profile.CountryID); err != nil {
		return nil, validationOrInternal(s.logger, err)
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.users.Create(ctx, &models.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Active:       true,
		Profile:      &in.Profile,
	}, []string{models.RoleStandardUser})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to register user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Success(ctx, models.AuditEventRegister, models.AuditActionCreate, &user.ID, &user.ID, nil)

	if err := s.mailer.SendWelcome(ctx, user.Email, in.Profile.FullName()); err != nil {
		s.logger.Warn("failed to send welcome mail", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	if err := s.verification.Send(ctx, user); err != nil {
		s.logger.Warn("failed to send verification mail", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}

	if err := s.events.Publish(ctx, events.UserEvent{
		Type:       events.UserCreated,
		UserID:     user.ID,
		Email:      user.Email,
		Username:   user.Username,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to publish user event", slog.String("type", events.UserCreated), slog.Any("error", err))
	}

	s.logger.Info("user registered", slog.Int64("user_id", user.ID))
	return s.issueToken(ctx, user, clientName)
}

// Login exchanges credentials for a bearer token named clientName.
// Unknown emails and wrong passwords fail identically, in time as well
// as in result.
func (s *AuthService) Login(ctx context.Context, email, password, clientName string) (*LoginResult, error) {
	start := time.Now()

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.audit.Failure(ctx, models.AuditEventLogin, models.AuditActionAccess, nil, "invalid_credentials", nil)
			s.timing.WaitFrom(start)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.audit.Failure(ctx, models.AuditEventLogin, models.AuditActionAccess, &user.ID, "invalid_credentials", nil)
		s.timing.WaitFrom(start)
		return nil, models.ErrUnauthorized
	}

	if !user.Active {
		s.audit.Failure(ctx, models.AuditEventLogin, models.AuditActionAccess, &user.ID, "account_inactive", nil)
		return nil, models.ErrAccountInactive
	}

	result, err := s.issueToken(ctx, user, clientName)
	if err != nil {
		return nil, err
	}

	s.audit.Success(ctx, models.AuditEventLogin, models.AuditActionAccess, &user.ID, nil,
		models.AuditMetadata{"client_name": result.TokenName})
	s.logger.Info("user logged in", slog.Int64("user_id", user.ID))

	return result, nil
}

func (s *AuthService) issueToken(ctx context.Context, user *models.User, clientName string) (*LoginResult, error) {
	if clientName = strings.TrimSpace(clientName); clientName == "" {
		clientName = defaultClientName
	}

	tokenID := auth.NewTokenID()
	expiresAt := time.Now().Add(s.signer.Expiry())

	if _, err := s.tokens.Create(ctx, user.ID, clientName, tokenID, expiresAt); err != nil {
		s.logger.Error("failed to persist access token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	signed, err := s.signer.Sign(user.ID, user.Email, tokenID, expiresAt)
	if err != nil {
		s.logger.Error("failed to sign access token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &LoginResult{Token: signed, TokenName: clientName, ExpiresAt: expiresAt, User: user}, nil
}

// Logout deletes the token used for the current request
func (s *AuthService) Logout(ctx context.Context, userID int64, tokenID string) error {
	if err := s.tokens.DeleteByTokenID(ctx, tokenID); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to delete access token", slog.Int64("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Success(ctx, models.AuditEventLogout, models.AuditActionAccess, &userID, nil, nil)
	return nil
}

// Tokens lists the unexpired tokens of userID
func (s *AuthService) Tokens(ctx context.Context, userID int64) ([]models.AccessToken, error) {
	tokens, err := s.tokens.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list access tokens", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	live := make([]models.AccessToken, 0, len(tokens))
	for _, t := range tokens {
		if !t.IsExpired() {
			live = append(live, t)
		}
	}
	return live, nil
}

// Revoke deletes the given tokens of userID; ids belonging to other users are ignored
func (s *AuthService) Revoke(ctx context.Context, userID int64, ids []int64) (int64, error) {
	n, err := s.tokens.DeleteForUser(ctx, userID, ids)
	if err != nil {
		s.logger.Error("failed to revoke access tokens", slog.Int64("user_id", userID), slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.audit.Success(ctx, models.AuditEventTokenRevoke, models.AuditActionDelete, &userID, &userID,
		models.AuditMetadata{"token_ids": ids, "revoked": n})
	return n, nil
}

func (s *AuthService) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	n, err := s.tokens.DeleteAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to revoke all access tokens", slog.Int64("user_id", userID), slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.audit.Success(ctx, models.AuditEventTokenRevoke, models.AuditActionDelete, &userID, &userID,
		models.AuditMetadata{"all": true, "revoked": n})
	return n, nil
}
