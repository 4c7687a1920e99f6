package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/roster/internal/models"
	pkgauth "github.com/BradenHooton/roster/pkg/auth"
)

func newVerificationService(repo *MockEmailVerificationRepository, users *MockUserRepository, mailer *MockMailer) (*EmailVerificationService, *MockAuditLogRepository) {
	audit, auditRepo := newTestAudit()
	return NewEmailVerificationService(repo, users, mailer, audit, testLogger(), 24*time.Hour), auditRepo
}

func TestEmailVerificationService_Send(t *testing.T) {
	var storedHash string
	deleted := false
	repo := &MockEmailVerificationRepository{
		DeleteByUserIDFunc: func(context.Context, int64) error {
			deleted = true
			return nil
		},
		CreateFunc: func(_ context.Context, userID int64, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error) {
			storedHash = tokenHash
			assert.Equal(t, "jane@example.com", email)
			assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)
			return &models.EmailVerificationToken{ID: 1}, nil
		},
	}
	mailer := &MockMailer{}
	svc, _ := newVerificationService(repo, &MockUserRepository{}, mailer)

	require.NoError(t, svc.Send(context.Background(), NewTestUser(1, "jane@example.com", "jane")))

	require.Len(t, mailer.Sent, 1)
	assert.True(t, deleted)
	assert.Equal(t, pkgauth.HashToken(mailer.Sent[0].Token), storedHash, "only the hash is stored")
}

func TestEmailVerificationService_Send_MailFailure(t *testing.T) {
	mailer := &MockMailer{Err: errors.New("ses down")}
	svc, _ := newVerificationService(&MockEmailVerificationRepository{}, &MockUserRepository{}, mailer)

	err := svc.Send(context.Background(), NewTestUser(1, "jane@example.com", "jane"))
	assert.ErrorIs(t, err, models.ErrDependency)
}

func TestEmailVerificationService_Verify(t *testing.T) {
	plain := "plain-token"
	valid := func() *models.EmailVerificationToken {
		return &models.EmailVerificationToken{
			ID:        5,
			UserID:    1,
			TokenHash: pkgauth.HashToken(plain),
			Email:     "jane@example.com",
			ExpiresAt: time.Now().Add(time.Hour),
		}
	}
	unverified := func() *models.User {
		u := NewTestUser(1, "jane@example.com", "jane")
		u.EmailVerifiedAt = nil
		return u
	}

	t.Run("marks email verified", func(t *testing.T) {
		marked := false
		repo := &MockEmailVerificationRepository{
			GetByTokenHashFunc: func(_ context.Context, hash string) (*models.EmailVerificationToken, error) {
				assert.Equal(t, pkgauth.HashToken(plain), hash)
				return valid(), nil
			},
			MarkAsUsedFunc: func(_ context.Context, id int64) error {
				marked = id == 5
				return nil
			},
		}
		users := &MockUserRepository{
			GetByIDFunc: func(context.Context, int64) (*models.User, error) { return unverified(), nil },
			UpdateFunc: func(_ context.Context, id int64, changes models.UserChanges) (*models.User, error) {
				require.NotNil(t, changes.EmailVerified)
				assert.True(t, *changes.EmailVerified)
				return NewTestUser(id, "jane@example.com", "jane"), nil
			},
		}
		svc, auditRepo := newVerificationService(repo, users, &MockMailer{})

		user, err := svc.Verify(context.Background(), plain)
		require.NoError(t, err)
		assert.True(t, user.IsVerified())
		assert.True(t, marked)
		assert.Equal(t, []string{models.AuditEventEmailVerify}, auditRepo.Events())
	})

	rejections := []struct {
		name  string
		token func() *models.EmailVerificationToken
		err   error
		user  *models.User
	}{
		{name: "unknown token", err: models.ErrNotFound},
		{name: "expired token", token: func() *models.EmailVerificationToken {
			tk := valid()
			tk.ExpiresAt = time.Now().Add(-time.Minute)
			return tk
		}},
		{name: "used token", token: func() *models.EmailVerificationToken {
			tk := valid()
			now := time.Now()
			tk.UsedAt = &now
			return tk
		}},
		{name: "email changed since", token: valid, user: NewTestUser(1, "other@example.com", "jane")},
	}

	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockEmailVerificationRepository{
				GetByTokenHashFunc: func(context.Context, string) (*models.EmailVerificationToken, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return tt.token(), nil
				},
			}
			users := &MockUserRepository{
				GetByIDFunc: func(context.Context, int64) (*models.User, error) {
					if tt.user != nil {
						return tt.user, nil
					}
					return unverified(), nil
				},
			}
			svc, _ := newVerificationService(repo, users, &MockMailer{})

			_, err := svc.Verify(context.Background(), plain)
			assert.ErrorIs(t, err, models.ErrBadRequest)
		})
	}

	t.Run("empty token", func(t *testing.T) {
		svc, _ := newVerificationService(&MockEmailVerificationRepository{}, &MockUserRepository{}, &MockMailer{})
		_, err := svc.Verify(context.Background(), "")
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})
}

func TestEmailVerificationService_Resend(t *testing.T) {
	unverified := NewTestUser(1, "jane@example.com", "jane")
	unverified.EmailVerifiedAt = nil

	t.Run("already verified", func(t *testing.T) {
		svc, _ := newVerificationService(&MockEmailVerificationRepository{}, &MockUserRepository{}, &MockMailer{})
		err := svc.Resend(context.Background(), NewTestUser(1, "jane@example.com", "jane"))
		assert.ErrorIs(t, err, models.ErrAlreadyVerified)
	})

	t.Run("within cooldown", func(t *testing.T) {
		repo := &MockEmailVerificationRepository{
			GetLatestByUserIDFunc: func(context.Context, int64) (*models.EmailVerificationToken, error) {
				return &models.EmailVerificationToken{CreatedAt: time.Now().Add(-10 * time.Second)}, nil
			},
		}
		mailer := &MockMailer{}
		svc, _ := newVerificationService(repo, &MockUserRepository{}, mailer)

		assert.ErrorIs(t, svc.Resend(context.Background(), unverified), models.ErrTooManyRequests)
		assert.Empty(t, mailer.Sent)
	})

	t.Run("after cooldown", func(t *testing.T) {
		repo := &MockEmailVerificationRepository{
			GetLatestByUserIDFunc: func(context.Context, int64) (*models.EmailVerificationToken, error) {
				return &models.EmailVerificationToken{CreatedAt: time.Now().Add(-2 * time.Minute)}, nil
			},
		}
		mailer := &MockMailer{}
		svc, _ := newVerificationService(repo, &MockUserRepository{}, mailer)

		require.NoError(t, svc.Resend(context.Background(), unverified))
		assert.Equal(t, []string{"verification"}, mailer.Kinds())
	})

	t.Run("no previous token", func(t *testing.T) {
		mailer := &MockMailer{}
		svc, _ := newVerificationService(&MockEmailVerificationRepository{}, &MockUserRepository{}, mailer)

		require.NoError(t, svc.Resend(context.Background(), unverified))
		assert.Len(t, mailer.Sent, 1)
	})
}
