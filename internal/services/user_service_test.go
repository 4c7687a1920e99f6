package services

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/roster/internal/events"
	"github.com/BradenHooton/roster/internal/filters"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/pagination"
)

func newUserService(repo *MockUserRepository) (*UserService, *MockPublisher, *MockAuditLogRepository) {
	audit, auditRepo := newTestAudit()
	publisher := &MockPublisher{}
	return NewUserService(repo, &MockCountryRepository{}, testSchema, publisher, audit, testLogger()), publisher, auditRepo
}

func sqlOf(t *testing.T, q filters.Query) (string, []any) {
	t.Helper()
	sql, args, err := q.Ordered().ToSql()
	require.NoError(t, err)
	return sql, args
}

func strPtr(s string) *string { return &s }

func TestUserService_ListUsers_AppliesFiltersAndNormalizes(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	repo := &MockUserRepository{
		PaginateFunc: func(_ context.Context, v pagination.Variant, q filters.Query, req pagination.Request) (pagination.Result[models.User], error) {
			assert.Equal(t, pagination.LengthAware, v)
			gotSQL, gotArgs = sqlOf(t, q)
			return &pagination.LengthAwareResult[models.User]{
				Data:         []models.User{*NewTestUser(1, "a@example.com", "a")},
				CurrentPage:  1,
				LastPage:     2,
				FirstPageURL: strPtr(req.Path + "?page=1"),
				NextPageURL:  strPtr(req.Path + "?page=2"),
				LastPageURL:  strPtr(req.Path + "?page=2"),
				PerPage:      req.PerPage,
				Total:        2,
				Path:         req.Path,
			}, nil
		},
	}
	svc, _, _ := newUserService(repo)

	query, _ := url.ParseQuery("active=1&sort=desc&sort_by=email&page=1&limit=1")
	req := pagination.Request{Page: 1, PerPage: 1, Path: "http://api.test/api/v1/users"}

	page, err := svc.ListUsers(context.Background(), query, pagination.LengthAware, req)
	require.NoError(t, err)

	assert.Contains(t, gotSQL, "users.active = $")
	assert.Contains(t, gotSQL, "ORDER BY users.email DESC, users.id DESC")
	assert.Contains(t, gotArgs, true)

	meta, ok := page.Pagination.(pagination.LengthAwareMeta)
	require.True(t, ok)
	require.NotNil(t, meta.NextPageURL)
	assert.Equal(t, "http://api.test/api/v1/users?page=2&active=1&limit=1&sort=desc&sort_by=email", *meta.NextPageURL)
	assert.Nil(t, meta.PrevPageURL)
	assert.Len(t, page.Data, 1)
}

func TestUserService_ListUsers_UnsupportedPaginator(t *testing.T) {
	repo := &MockUserRepository{
		PaginateFunc: func(context.Context, pagination.Variant, filters.Query, pagination.Request) (pagination.Result[models.User], error) {
			return &pagination.SimpleResult[models.User]{}, nil
		},
	}
	svc, _, _ := newUserService(repo)

	_, err := svc.ListUsers(context.Background(), url.Values{}, pagination.LengthAware, pagination.Request{})
	assert.ErrorIs(t, err, pagination.ErrUnsupportedPaginator)
}

func TestUserService_ListUsers_RepositoryError(t *testing.T) {
	repo := &MockUserRepository{
		PaginateFunc: func(context.Context, pagination.Variant, filters.Query, pagination.Request) (pagination.Result[models.User], error) {
			return nil, errors.New("connection reset")
		},
	}
	svc, _, _ := newUserService(repo)

	_, err := svc.ListUsers(context.Background(), url.Values{}, pagination.Simple, pagination.Request{})
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestUserService_SearchUsers_OnlySorts(t *testing.T) {
	var gotSQL string
	repo := &MockUserRepository{
		SearchQueryFunc: func(term string) filters.Query {
			assert.Equal(t, "jan", term)
			return testUsersQuery()
		},
		PaginateFunc: func(_ context.Context, v pagination.Variant, q filters.Query, req pagination.Request) (pagination.Result[models.User], error) {
			gotSQL, _ = sqlOf(t, q)
			return &pagination.SimpleResult[models.User]{CurrentPage: 1, PerPage: req.PerPage, Path: req.Path}, nil
		},
	}
	svc, _, _ := newUserService(repo)

	query, _ := url.ParseQuery("query=jan&active=1&sort=asc")
	_, err := svc.SearchUsers(context.Background(), "jan", query, pagination.Simple, pagination.Request{PerPage: 25})
	require.NoError(t, err)

	assert.NotContains(t, gotSQL, "users.active")
	assert.Contains(t, gotSQL, "ORDER BY users.id ASC")
}

func TestUserService_GetUser(t *testing.T) {
	tests := []struct {
		name    string
		repoErr error
		wantErr error
	}{
		{"found", nil, nil},
		{"not found", models.ErrNotFound, models.ErrNotFound},
		{"database error", errors.New("boom"), models.ErrInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockUserRepository{
				GetByIDFunc: func(_ context.Context, id int64) (*models.User, error) {
					if tt.repoErr != nil {
						return nil, tt.repoErr
					}
					return NewTestUser(id, "a@example.com", "a"), nil
				},
			}
			svc, _, _ := newUserService(repo)

			user, err := svc.GetUser(context.Background(), 3)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(3), user.ID)
		})
	}
}

func TestUserService_CreateUser(t *testing.T) {
	var gotRoles []string
	var gotUser *models.User
	repo := &MockUserRepository{
		CreateFunc: func(_ context.Context, user *models.User, roles []string) (*models.User, error) {
			gotUser, gotRoles = user, roles
			created := *user
			created.ID = 10
			return &created, nil
		},
	}
	svc, publisher, auditRepo := newUserService(repo)

	verified := true
	inactive := false
	user, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Email:         "new@example.com",
		Username:      "new",
		Password:      "Str0ng!Passw0rd",
		Active:        &inactive,
		EmailVerified: &verified,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), user.ID)
	assert.Equal(t, []string{models.RoleStandardUser}, gotRoles)
	assert.False(t, gotUser.Active)
	assert.NotNil(t, gotUser.EmailVerifiedAt)
	assert.Equal(t, []string{events.UserCreated}, publisher.Types())
	require.Len(t, publisher.Events, 1)
	assert.Equal(t, int64(1), *publisher.Events[0].ActorID)
	assert.Equal(t, []string{models.AuditEventUserAction}, auditRepo.Events())
}

func TestUserService_CreateUser_RejectsRoles(t *testing.T) {
	for _, role := range []string{models.RoleSuperUser, "wizard"} {
		t.Run(role, func(t *testing.T) {
			svc, _, _ := newUserService(&MockUserRepository{})

			_, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
				Email: "a@example.com", Username: "a", Password: "x", Roles: []string{role},
			})

			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, "roles")
		})
	}
}

func TestUserService_CreateUser_UnknownCountry(t *testing.T) {
	audit, _ := newTestAudit()
	countries := &MockCountryRepository{
		ExistsFunc: func(context.Context, int64) (bool, error) { return false, nil },
	}
	svc := NewUserService(&MockUserRepository{}, countries, testSchema, &MockPublisher{}, audit, testLogger())

	country := int64(999)
	_, err := svc.CreateUser(context.Background(), 1, CreateUserInput{
		Email: "a@example.com", Username: "a", Password: "x",
		Profile: models.UserProfile{CountryID: &country},
	})

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"The selected country id is invalid."}, verr.Fields["country_id"])
}

func TestUserService_UpdateUser(t *testing.T) {
	target := NewTestUser(5, "old@example.com", "old")
	var gotChanges models.UserChanges
	repo := &MockUserRepository{
		GetByIDFunc: func(context.Context, int64) (*models.User, error) { return target, nil },
		UpdateFunc: func(_ context.Context, id int64, changes models.UserChanges) (*models.User, error) {
			gotChanges = changes
			return NewTestUser(id, "new@example.com", "old"), nil
		},
	}
	svc, publisher, _ := newUserService(repo)

	email := "new@example.com"
	password := "N3w!Password"
	_, err := svc.UpdateUser(context.Background(), 1, 5, models.UserChanges{
		Email: &email,
		Roles: []string{models.RoleAdmin},
	}, &password)
	require.NoError(t, err)

	require.NotNil(t, gotChanges.PasswordHash)
	assert.NotEqual(t, password, *gotChanges.PasswordHash)
	require.Len(t, publisher.Events, 1)
	assert.Equal(t, events.UserUpdated, publisher.Events[0].Type)
	assert.Equal(t, []string{"email", "password", "roles"}, publisher.Events[0].Changed)
}

func TestUserService_SuperUserProtected(t *testing.T) {
	deleted := false
	repo := &MockUserRepository{
		GetByIDFunc: func(_ context.Context, id int64) (*models.User, error) { return NewTestSuperUser(id), nil },
		SoftDeleteFunc: func(context.Context, int64, time.Time) error {
			deleted = true
			return nil
		},
	}
	svc, publisher, auditRepo := newUserService(repo)

	_, err := svc.UpdateUser(context.Background(), 1, 2, models.UserChanges{}, nil)
	assert.ErrorIs(t, err, models.ErrSuperUserProtected)

	err = svc.DeleteUser(context.Background(), 1, 2)
	assert.ErrorIs(t, err, models.ErrSuperUserProtected)

	assert.False(t, deleted)
	assert.Empty(t, publisher.Events)
	require.Len(t, auditRepo.Entries, 2)
	assert.False(t, auditRepo.Entries[0].Success)
}

func TestUserService_DeleteUser(t *testing.T) {
	repo := &MockUserRepository{
		GetByIDFunc: func(_ context.Context, id int64) (*models.User, error) {
			return NewTestUser(id, "a@example.com", "a"), nil
		},
	}
	svc, publisher, _ := newUserService(repo)

	require.NoError(t, svc.DeleteUser(context.Background(), 1, 9))
	assert.Equal(t, []string{events.UserDeleted}, publisher.Types())
}

func TestUserService_DeleteUser_PublishFailureIgnored(t *testing.T) {
	repo := &MockUserRepository{
		GetByIDFunc: func(_ context.Context, id int64) (*models.User, error) {
			return NewTestUser(id, "a@example.com", "a"), nil
		},
	}
	svc, publisher, _ := newUserService(repo)
	publisher.Err = errors.New("broker unavailable")

	assert.NoError(t, svc.DeleteUser(context.Background(), 1, 9))
}

func TestUserService_EnsureSuperUser(t *testing.T) {
	t.Run("skips without credentials", func(t *testing.T) {
		svc, _, _ := newUserService(&MockUserRepository{})
		assert.NoError(t, svc.EnsureSuperUser(context.Background(), "", ""))
	})

	t.Run("exists already", func(t *testing.T) {
		repo := &MockUserRepository{
			GetByEmailFunc: func(context.Context, string) (*models.User, error) { return NewTestSuperUser(1), nil },
		}
		svc, _, _ := newUserService(repo)
		assert.NoError(t, svc.EnsureSuperUser(context.Background(), "root@example.com", "Sup3r!Secret"))
	})

	t.Run("creates verified super user", func(t *testing.T) {
		var gotRoles []string
		var gotUser *models.User
		repo := &MockUserRepository{
			CreateFunc: func(_ context.Context, user *models.User, roles []string) (*models.User, error) {
				gotUser, gotRoles = user, roles
				return user, nil
			},
		}
		svc, _, _ := newUserService(repo)

		require.NoError(t, svc.EnsureSuperUser(context.Background(), "root@example.com", "Sup3r!Secret"))
		assert.Equal(t, []string{models.RoleSuperUser}, gotRoles)
		assert.True(t, gotUser.IsVerified())
		assert.Equal(t, "superuser", gotUser.Username)
	})
}

func TestUserService_Availability(t *testing.T) {
	repo := &MockUserRepository{
		EmailExistsFunc:    func(_ context.Context, email string) (bool, error) { return email == "taken@example.com", nil },
		UsernameExistsFunc: func(context.Context, string) (bool, error) { return false, errors.New("boom") },
	}
	svc, _, _ := newUserService(repo)

	ok, err := svc.EmailAvailable(context.Background(), "taken@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.EmailAvailable(context.Background(), "free@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.UsernameAvailable(context.Background(), "x")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}
