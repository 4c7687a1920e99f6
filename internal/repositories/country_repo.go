package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/models"
)

type CountryRepository struct {
	pool *pgxpool.Pool
}

func NewCountryRepository(db *database.DB) *CountryRepository {
	return &CountryRepository{pool: db.Pool}
}

func (r *CountryRepository) List(ctx context.Context) ([]models.Country, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, iso, name, iso3, num_code, phone_code FROM countries ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query countries: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.Country])
}

func (r *CountryRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM countries WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}
