package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BradenHooton/roster/internal/events"
	"github.com/BradenHooton/roster/internal/filters"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/pagination"
	pkgauth "github.com/BradenHooton/roster/pkg/auth"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	ListQuery() filters.Query
	SearchQuery(term string) filters.Query
	Paginate(ctx context.Context, v pagination.Variant, q filters.Query, req pagination.Request) (pagination.Result[models.User], error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User, roles []string) (*models.User, error)
	Update(ctx context.Context, id int64, changes models.UserChanges) (*models.User, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	Permissions(ctx context.Context, userID int64) ([]string, error)
}

// CreateUserInput is an administrator-created account
type CreateUserInput struct {
	Email         string
	Username      string
	Password      string
	Active        *bool
	EmailVerified *bool
	Roles         []string
	Profile       models.UserProfile
}

// UserService handles user business logic
type UserService struct {
	repo    UserRepository
	checks  accountChecks
	filters filters.Pipeline
	sorter  filters.Pipeline
	events  events.Publisher
	audit   *AuditService
	logger  *slog.Logger
}

func NewUserService(repo UserRepository, countries CountryRepository, schema filters.SchemaInspector, publisher events.Publisher, audit *AuditService, logger *slog.Logger) *UserService {
	return &UserService{
		repo:    repo,
		checks:  accountChecks{users: repo, countries: countries},
		filters: filters.UserStages(schema, logger),
		sorter:  filters.Pipeline{filters.UserSort(schema, logger)},
		events:  publisher,
		audit:   audit,
		logger:  logger,
	}
}

// ListUsers runs the user filter pipeline over every live user and returns
// the requested page.
func (s *UserService) ListUsers(ctx context.Context, query url.Values, v pagination.Variant, req pagination.Request) (pagination.Page[models.User], error) {
	q, err := s.filters.Apply(ctx, s.repo.ListQuery(), filters.NewParams(query))
	if err != nil {
		s.logger.Error("failed to apply user filters", slog.Any("error", err))
		return pagination.Page[models.User]{}, models.ErrInternalServer
	}
	return s.page(ctx, q, query, v, req)
}

// SearchUsers matches term against email and username prefixes and name
// substrings. Only the sort stage applies to search results.
func (s *UserService) SearchUsers(ctx context.Context, term string, query url.Values, v pagination.Variant, req pagination.Request) (pagination.Page[models.User], error) {
	q, err := s.sorter.Apply(ctx, s.repo.SearchQuery(term), filters.NewParams(query))
	if err != nil {
		s.logger.Error("failed to apply search sort", slog.Any("error", err))
		return pagination.Page[models.User]{}, models.ErrInternalServer
	}
	return s.page(ctx, q, query, v, req)
}

func (s *UserService) page(ctx context.Context, q filters.Query, query url.Values, v pagination.Variant, req pagination.Request) (pagination.Page[models.User], error) {
	raw, err := s.repo.Paginate(ctx, v, q, req)
	if err != nil {
		if errors.Is(err, pagination.ErrUnsupportedPaginator) {
			return pagination.Page[models.User]{}, err
		}
		s.logger.Error("failed to paginate users", slog.String("paginator", v.String()), slog.Any("error", err))
		return pagination.Page[models.User]{}, models.ErrInternalServer
	}

	return pagination.Normalize(v, raw, query)
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.Int64("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// CreateUser creates an account on behalf of actorID. Roles default to
// standard_user; super_user can never be granted through the API.
func (s *UserService) CreateUser(ctx context.Context, actorID int64, in CreateUserInput) (*models.User, error) {
	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{models.RoleStandardUser}
	}
	if err := assignableRoles(roles); err != nil {
		return nil, err
	}
	if err := s.checks.validate(ctx, nil, &in.Email, &in.Username, in.Profile.CountryID); err != nil {
		return nil, s.checkFailed(err)
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Active:       true,
		Profile:      &in.Profile,
	}
	if in.Active != nil {
		user.Active = *in.Active
	}
	if in.EmailVerified != nil && *in.EmailVerified {
		now := time.Now()
		user.EmailVerifiedAt = &now
	}

	created, err := s.repo.Create(ctx, user, roles)
	if err != nil {
		if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrBadRequest) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Success(ctx, models.AuditEventUserAction, models.AuditActionCreate, &actorID, &created.ID,
		models.AuditMetadata{"roles": roles})
	s.publish(ctx, events.UserCreated, created, &actorID, nil)

	s.logger.Info("user created", slog.Int64("user_id", created.ID), slog.Int64("actor_id", actorID))
	return created, nil
}

// UpdateUser applies changes to another account. Super users are immutable.
func (s *UserService) UpdateUser(ctx context.Context, actorID, id int64, changes models.UserChanges, password *string) (*models.User, error) {
	target, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.IsSuperUser() {
		s.audit.Failure(ctx, models.AuditEventUserAction, models.AuditActionUpdate, &actorID, "super_user_protected",
			models.AuditMetadata{"target_id": id})
		return nil, models.ErrSuperUserProtected
	}

	if changes.Roles != nil {
		if err := assignableRoles(changes.Roles); err != nil {
			return nil, err
		}
	}
	if err := s.checks.validate(ctx, target, changes.Email, changes.Username, changes.Profile.CountryID); err != nil {
		return nil, s.checkFailed(err)
	}

	if password != nil {
		hash, err := pkgauth.HashPassword(*password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		changes.PasswordHash = &hash
	}

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrBadRequest) {
			return nil, err
		}
		s.logger.Error("failed to update user", slog.Int64("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	changed := changedFields(changes)
	s.audit.Success(ctx, models.AuditEventUserAction, models.AuditActionUpdate, &actorID, &id,
		models.AuditMetadata{"changed": changed})
	s.publish(ctx, events.UserUpdated, updated, &actorID, changed)

	return updated, nil
}

// DeleteUser soft deletes an account. Super users cannot be deleted.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id int64) error {
	target, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if target.IsSuperUser() {
		s.audit.Failure(ctx, models.AuditEventUserAction, models.AuditActionDelete, &actorID, "super_user_protected",
			models.AuditMetadata{"target_id": id})
		return models.ErrSuperUserProtected
	}

	if err := s.repo.SoftDelete(ctx, id, time.Now()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete user", slog.Int64("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Success(ctx, models.AuditEventUserAction, models.AuditActionDelete, &actorID, &id, nil)
	s.publish(ctx, events.UserDeleted, target, &actorID, nil)

	s.logger.Info("user deleted", slog.Int64("user_id", id), slog.Int64("actor_id", actorID))
	return nil
}

// EnsureSuperUser creates a verified super user for email unless one
// already exists under that address.
func (s *UserService) EnsureSuperUser(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		s.logger.Info("no SUPER_USER_EMAIL or SUPER_USER_PASSWORD set, skipping super user creation")
		return nil
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("super user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if super user exists: %w", err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash super user password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		Email:           email,
		Username:        "superuser",
		PasswordHash:    hash,
		Active:          true,
		EmailVerifiedAt: &now,
		Profile:         &models.UserProfile{FirstName: "Super", LastName: "User"},
	}
	if _, err := s.repo.Create(ctx, user, []string{models.RoleSuperUser}); err != nil {
		return fmt.Errorf("failed to create super user: %w", err)
	}

	s.logger.Info("super user created successfully")
	return nil
}

func (s *UserService) publish(ctx context.Context, eventType string, user *models.User, actorID *int64, changed []string) {
	err := s.events.Publish(ctx, events.UserEvent{
		Type:       eventType,
		UserID:     user.ID,
		ActorID:    actorID,
		Email:      user.Email,
		Username:   user.Username,
		Changed:    changed,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to publish user event", slog.String("type", eventType), slog.Any("error", err))
	}
}

// EmailAvailable reports whether email can be registered. Addresses of
// soft-deleted users are free again because deletion suffixes them.
func (s *UserService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	taken, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	return !taken, nil
}

func (s *UserService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		s.logger.Error("failed to check username availability", slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	return !taken, nil
}

func (s *UserService) checkFailed(err error) error {
	return validationOrInternal(s.logger, err)
}

// validationOrInternal passes validation errors through and hides the rest
func validationOrInternal(logger *slog.Logger, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	logger.Error("failed to validate account fields", slog.Any("error", err))
	return models.ErrInternalServer
}

func assignableRoles(roles []string) error {
	for _, r := range roles {
		if !models.IsValidRole(r) || r == models.RoleSuperUser {
			return models.NewValidationError("roles", fmt.Sprintf("The role %q cannot be assigned.", r))
		}
	}
	return nil
}

// changedFields names the fields set in changes, for audit and events
func changedFields(c models.UserChanges) []string {
	var out []string
	add := func(name string, set bool) {
		if set {
			out = append(out, name)
		}
	}
	add("email", c.Email != nil)
	add("username", c.Username != nil)
	add("password", c.PasswordHash != nil)
	add("active", c.Active != nil)
	add("email_verified", c.EmailVerified != nil)
	add("roles", c.Roles != nil)
	add("profile", !c.Profile.IsEmpty())
	return out
}
