package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/BradenHooton/roster/internal/events"
	"github.com/BradenHooton/roster/internal/models"
	pkgauth "github.com/BradenHooton/roster/pkg/auth"
)

// DefaultMaxPictureBytes caps profile picture uploads
const DefaultMaxPictureBytes int64 = 5 << 20

var allowedPictureTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// ObjectStore keeps uploaded files
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ProfileChangesInput is what a user may change about their own account
type ProfileChangesInput struct {
	Email    *string
	Username *string
	Profile  models.ProfileChanges
}

// ProfileService serves the signed-in user's own account
type ProfileService struct {
	users        UserRepository
	checks       accountChecks
	store        ObjectStore
	verification *EmailVerificationService
	events       events.Publisher
	audit        *AuditService
	logger       *slog.Logger
	maxBytes     int64
}

// NewProfileService builds the service; store may be nil when no bucket is
// configured, in which case uploads fail with ErrDependency.
func NewProfileService(
	users UserRepository,
	countries CountryRepository,
	store ObjectStore,
	verification *EmailVerificationService,
	publisher events.Publisher,
	audit *AuditService,
	logger *slog.Logger,
	maxBytes int64,
) *ProfileService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPictureBytes
	}
	return &ProfileService{
		users:        users,
		checks:       accountChecks{users: users, countries: countries},
		store:        store,
		verification: verification,
		events:       publisher,
		audit:        audit,
		logger:       logger,
		maxBytes:     maxBytes,
	}
}

// Get returns the user with profile and roles plus its permission names
func (s *ProfileService) Get(ctx context.Context, userID int64) (*models.User, []string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrNotFound
		}
		s.logger.Error("failed to get profile", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	perms, err := s.users.Permissions(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load permissions", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}
	return user, perms, nil
}

// Update changes the caller's email, username and profile fields. A new
// email address must be verified again.
func (s *ProfileService) Update(ctx context.Context, user *models.User, in ProfileChangesInput) (*models.User, error) {
	if err := s.checks.validate(ctx, user, in.Email, in.Username, in.Profile.CountryID); err != nil {
		return nil, validationOrInternal(s.logger, err)
	}

	changes := models.UserChanges{
		Email:    in.Email,
		Username: in.Username,
		Profile:  in.Profile,
	}

	emailChanged := in.Email != nil && !strings.EqualFold(*in.Email, user.Email)
	if emailChanged {
		unverified := false
		changes.EmailVerified = &unverified
	}

	updated, err := s.users.Update(ctx, user.ID, changes)
	if err != nil {
		if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrBadRequest) {
			return nil, err
		}
		s.logger.Error("failed to update profile", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if emailChanged {
		if err := s.verification.Send(ctx, updated); err != nil {
			s.logger.Warn("failed to send verification after email change", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	}

	changed := changedFields(changes)
	s.audit.Success(ctx, models.AuditEventUserAction, models.AuditActionUpdate, &user.ID, &user.ID,
		models.AuditMetadata{"changed": changed})
	s.publish(ctx, updated, user.ID, changed)

	return updated, nil
}

// ChangePassword replaces the caller's password after checking the old one
func (s *ProfileService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
	if err := pkgauth.ComparePassword(user.PasswordHash, oldPassword); err != nil {
		s.audit.Failure(ctx, models.AuditEventPasswordChange, models.AuditActionUpdate, &user.ID, "incorrect_old_password", nil)
		return models.ErrIncorrectOldPassword
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.users.Update(ctx, user.ID, models.UserChanges{PasswordHash: &hash}); err != nil {
		s.logger.Error("failed to change password", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Success(ctx, models.AuditEventPasswordChange, models.AuditActionUpdate, &user.ID, &user.ID, nil)
	return nil
}

// UploadPicture stores body as the profile picture of targetID and removes
// the previous one. Pictures of super users can only be changed by themselves.
func (s *ProfileService) UploadPicture(ctx context.Context, actorID, targetID int64, body io.ReadSeeker, size int64) (*models.User, error) {
	if s.store == nil {
		return nil, models.ErrDependency
	}
	if size > s.maxBytes {
		return nil, models.NewValidationError("photo",
			fmt.Sprintf("The photo may not be greater than %d kilobytes.", s.maxBytes>>10))
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load user for picture upload", slog.Int64("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if actorID != targetID && target.IsSuperUser() {
		return nil, models.ErrSuperUserProtected
	}

	mtype, err := mimetype.DetectReader(body)
	if err != nil {
		s.logger.Warn("failed to detect picture type", slog.Any("error", err))
		return nil, models.NewValidationError("photo", "The photo must be an image.")
	}
	if !mimetype.EqualsAny(mtype.String(), allowedPictureTypes...) {
		return nil, models.NewValidationError("photo", "The photo must be a file of type: jpeg, png, gif, webp.")
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		s.logger.Error("failed to rewind picture", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	key := pictureKey(targetID, mtype.Extension())
	if err := s.store.Put(ctx, key, mtype.String(), body, size); err != nil {
		s.logger.Error("failed to store profile picture", slog.Int64("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrDependency
	}

	updated, err := s.users.Update(ctx, targetID, models.UserChanges{
		Profile: models.ProfileChanges{ProfilePicturePath: &key},
	})
	if err != nil {
		s.logger.Error("failed to save profile picture path", slog.Int64("user_id", targetID), slog.Any("error", err))
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Warn("failed to remove orphaned picture", slog.String("key", key), slog.Any("error", derr))
		}
		return nil, models.ErrInternalServer
	}

	if target.Profile != nil && target.Profile.ProfilePicturePath != nil && *target.Profile.ProfilePicturePath != key {
		if err := s.store.Delete(ctx, *target.Profile.ProfilePicturePath); err != nil {
			s.logger.Warn("failed to remove previous picture", slog.Int64("user_id", targetID), slog.Any("error", err))
		}
	}

	s.audit.Success(ctx, models.AuditEventUserAction, models.AuditActionUpdate, &actorID, &targetID,
		models.AuditMetadata{"changed": []string{"profile_picture"}})
	s.publish(ctx, updated, actorID, []string{"profile"})

	return updated, nil
}

// PictureURL returns a temporary link to the user's picture, or nil
func (s *ProfileService) PictureURL(ctx context.Context, user *models.User) *string {
	if s.store == nil || user == nil || user.Profile == nil || user.Profile.ProfilePicturePath == nil {
		return nil
	}

	link, err := s.store.URL(ctx, *user.Profile.ProfilePicturePath)
	if err != nil {
		s.logger.Warn("failed to presign picture url", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil
	}
	return &link
}

func (s *ProfileService) publish(ctx context.Context, user *models.User, actorID int64, changed []string) {
	err := s.events.Publish(ctx, events.UserEvent{
		Type:       events.UserUpdated,
		UserID:     user.ID,
		ActorID:    &actorID,
		Email:      user.Email,
		Username:   user.Username,
		Changed:    changed,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to publish user event", slog.String("type", events.UserUpdated), slog.Any("error", err))
	}
}

func pictureKey(ownerID int64, ext string) string {
	return fmt.Sprintf("images/%d/profile-pictures/%s%s", ownerID, uuid.NewString(), ext)
}
