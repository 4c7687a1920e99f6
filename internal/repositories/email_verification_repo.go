package repositories

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/models"
)

var verificationColumns = []string{"id", "user_id", "token_hash", "email", "expires_at", "used_at", "created_at"}

// EmailVerificationRepository stores hashed verification tokens. The email
// column pins a token to the address it was mailed to, so changing the
// address invalidates older links.
type EmailVerificationRepository struct {
	pool *pgxpool.Pool
}

func NewEmailVerificationRepository(db *database.DB) *EmailVerificationRepository {
	return &EmailVerificationRepository{pool: db.Pool}
}

func (r *EmailVerificationRepository) getOne(ctx context.Context, q sq.SelectBuilder) (*models.EmailVerificationToken, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build verification lookup: %w", err)
	}

	var t models.EmailVerificationToken
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.Email, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &t, nil
}

func (r *EmailVerificationRepository) Create(ctx context.Context, userID int64, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error) {
	var t models.EmailVerificationToken
	err := r.pool.QueryRow(ctx, `
		INSERT INTO email_verification_tokens (user_id, token_hash, email, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		userID, tokenHash, email, expiresAt,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store verification token: %w", database.MapPostgresError(err))
	}

	t.UserID = userID
	t.TokenHash = tokenHash
	t.Email = email
	t.ExpiresAt = expiresAt
	return &t, nil
}

func (r *EmailVerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
	return r.getOne(ctx, psql.Select(verificationColumns...).
		From("email_verification_tokens").
		Where(sq.Eq{"token_hash": tokenHash}))
}

// GetLatestByUserID backs the resend cooldown.
func (r *EmailVerificationRepository) GetLatestByUserID(ctx context.Context, userID int64) (*models.EmailVerificationToken, error) {
	return r.getOne(ctx, psql.Select(verificationColumns...).
		From("email_verification_tokens").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1))
}

// MarkAsUsed consumes a token. A token that was already consumed yields
// models.ErrNotFound so a link cannot be replayed.
func (r *EmailVerificationRepository) MarkAsUsed(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE email_verification_tokens SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *EmailVerificationRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM email_verification_tokens WHERE user_id = $1`, userID)
	return database.MapPostgresError(err)
}

// CleanupExpired drops expired tokens and tokens consumed over a day ago.
func (r *EmailVerificationRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query, args, err := psql.Delete("email_verification_tokens").
		Where(sq.Or{
			sq.Lt{"expires_at": time.Now()},
			sq.Lt{"used_at": time.Now().Add(-24 * time.Hour)},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build verification cleanup: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
