package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/roster/internal/models"
)

type CountryService struct {
	repo   CountryRepository
	logger *slog.Logger
}

func NewCountryService(repo CountryRepository, logger *slog.Logger) *CountryService {
	return &CountryService{repo: repo, logger: logger}
}

func (s *CountryService) List(ctx context.Context) ([]models.Country, error) {
	countries, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list countries", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return countries, nil
}
