package repositories

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/models"
)

const accessTokenColumns = `id, user_id, name, token_id, last_used_at, expires_at, created_at`

// TokenRepository stores personal access tokens. A JWT is only honoured
// while its jti has a row here.
type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(db *database.DB) *TokenRepository {
	return &TokenRepository{pool: db.Pool}
}

func scanAccessTokenRow(row rowScanner) (*models.AccessToken, error) {
	var t models.AccessToken

	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenID, &t.LastUsedAt, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &t, nil
}

func (r *TokenRepository) Create(ctx context.Context, userID int64, name, tokenID string, expiresAt time.Time) (*models.AccessToken, error) {
	query := `
		INSERT INTO personal_access_tokens (user_id, name, token_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + accessTokenColumns

	token, err := scanAccessTokenRow(r.pool.QueryRow(ctx, query, userID, name, tokenID, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	return token, nil
}

func (r *TokenRepository) GetByTokenID(ctx context.Context, tokenID string) (*models.AccessToken, error) {
	query := `SELECT ` + accessTokenColumns + ` FROM personal_access_tokens WHERE token_id = $1`
	return scanAccessTokenRow(r.pool.QueryRow(ctx, query, tokenID))
}

func (r *TokenRepository) ListByUser(ctx context.Context, userID int64) ([]models.AccessToken, error) {
	query := `
		SELECT ` + accessTokenColumns + `
		FROM personal_access_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query access tokens: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AccessToken, error) {
		t, err := scanAccessTokenRow(row)
		if err != nil {
			return models.AccessToken{}, err
		}
		return *t, nil
	})
}

// Touch records that the token was just used
func (r *TokenRepository) Touch(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE personal_access_tokens SET last_used_at = NOW() WHERE id = $1`, id)
	return database.MapPostgresError(err)
}

func (r *TokenRepository) DeleteByTokenID(ctx context.Context, tokenID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM personal_access_tokens WHERE token_id = $1`, tokenID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteForUser deletes the given tokens of a user; ids belonging to other users are ignored.
func (r *TokenRepository) DeleteForUser(ctx context.Context, userID int64, ids []int64) (int64, error) {
	query, args, err := psql.Delete("personal_access_tokens").
		Where(sq.Eq{"user_id": userID, "id": ids}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build token delete: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM personal_access_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// CleanupExpired removes tokens past their expiry
func (r *TokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM personal_access_tokens WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
