package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/roster/internal/models"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

type CountryLister interface {
	List(ctx context.Context) ([]models.Country, error)
}

type CountryHandler struct {
	service CountryLister
}

func NewCountryHandler(service CountryLister) *CountryHandler {
	return &CountryHandler{service: service}
}

func (h *CountryHandler) List(w http.ResponseWriter, r *http.Request) {
	countries, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, countriesToResponse(countries))
}
