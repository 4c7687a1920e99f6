package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/roster/internal/handlers"
	"github.com/BradenHooton/roster/internal/models"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

func TestAvailability(t *testing.T) {
	h := handlers.NewAvailabilityHandler(&handlers.MockAvailabilityChecker{
		Taken: map[string]bool{"taken@example.com": true, "taken": true},
	})

	tests := []struct {
		name    string
		handler http.HandlerFunc
		url     string
		want    bool
	}{
		{"free email", h.Email, "/availability/email?value=free@example.com", true},
		{"taken email is case insensitive", h.Email, "/availability/email?value=Taken@Example.com", false},
		{"free username", h.Username, "/availability/username?value=someone", true},
		{"taken username", h.Username, "/availability/username?value=TAKEN", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest("GET", tt.url, nil))

			var resp handlers.AvailabilityResponse
			handlers.AssertDataResponse(t, w, http.StatusOK, &resp)
			assert.Equal(t, tt.want, resp.IsAvailable)
		})
	}
}

func TestAvailability_Validation(t *testing.T) {
	h := handlers.NewAvailabilityHandler(&handlers.MockAvailabilityChecker{})

	w := httptest.NewRecorder()
	h.Email(w, httptest.NewRequest("GET", "/availability/email?value=not-an-email", nil))
	resp := handlers.AssertErrorResponse(t, w, 422, pkghttp.CodeValidation)
	assert.Equal(t, []string{"The value field must be a valid email address."}, resp.Errors["value"])

	w = httptest.NewRecorder()
	h.Username(w, httptest.NewRequest("GET", "/availability/username", nil))
	resp = handlers.AssertErrorResponse(t, w, 422, pkghttp.CodeValidation)
	assert.Equal(t, []string{"The value field is required."}, resp.Errors["value"])
}

func TestCountries(t *testing.T) {
	lister := &handlers.MockCountryLister{Countries: []models.Country{
		{ID: 174, ISO: "PH", Name: "Philippines", ISO3: "PHL", NumCode: 608, PhoneCode: 63},
	}}

	w := httptest.NewRecorder()
	handlers.NewCountryHandler(lister).List(w, httptest.NewRequest("GET", "/api/v1/countries", nil))

	var resp []handlers.CountryResponse
	handlers.AssertDataResponse(t, w, http.StatusOK, &resp)
	assert.Len(t, resp, 1)
	assert.Equal(t, "PH", resp[0].ISO)
}

func TestCountries_Error(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.NewCountryHandler(&handlers.MockCountryLister{Err: errors.New("db down")}).
		List(w, httptest.NewRequest("GET", "/api/v1/countries", nil))

	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, pkghttp.CodeServer)
}

func TestHealth(t *testing.T) {
	up := handlers.PingFunc(func(context.Context) error { return nil })
	down := handlers.PingFunc(func(context.Context) error { return errors.New("refused") })

	t.Run("healthy", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.NewHealthHandler(map[string]handlers.Pinger{"database": up}).
			Health(w, httptest.NewRequest("GET", "/health", nil))

		var resp map[string]any
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "healthy", resp["status"])
	})

	t.Run("one dependency down", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.NewHealthHandler(map[string]handlers.Pinger{"database": up, "redis": down}).
			Health(w, httptest.NewRequest("GET", "/health", nil))

		var resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		handlers.AssertJSONResponse(t, w, http.StatusServiceUnavailable, &resp)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "up", resp.Checks["database"])
		assert.Equal(t, "down", resp.Checks["redis"])
	})
}
