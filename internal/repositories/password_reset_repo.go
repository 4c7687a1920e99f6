package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/models"
)

type PasswordResetRepository struct {
	pool *pgxpool.Pool
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{pool: db.Pool}
}

// Replace drops any outstanding token for email and stores a new one.
func (r *PasswordResetRepository) Replace(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	email = strings.ToLower(email)

	batch := `
		WITH removed AS (DELETE FROM password_reset_tokens WHERE email = $1)
		INSERT INTO password_reset_tokens (email, token_hash, expires_at) VALUES ($1, $2, $3)
	`
	if _, err := r.pool.Exec(ctx, batch, email, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("failed to store password reset token: %w", database.MapPostgresError(err))
	}
	return nil
}

func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, email, token_hash, expires_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
	`

	var t models.PasswordResetToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(&t.ID, &t.Email, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &t, nil
}

func (r *PasswordResetRepository) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE email = $1`, strings.ToLower(email))
	return database.MapPostgresError(err)
}

func (r *PasswordResetRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup password reset tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
