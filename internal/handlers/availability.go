package handlers

import (
	"context"
	"net/http"
	"strings"

	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// AvailabilityChecker reports whether an email or username is still free
type AvailabilityChecker interface {
	EmailAvailable(ctx context.Context, email string) (bool, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
}

type AvailabilityHandler struct {
	checker AvailabilityChecker
}

func NewAvailabilityHandler(checker AvailabilityChecker) *AvailabilityHandler {
	return &AvailabilityHandler{checker: checker}
}

type emailAvailabilityQuery struct {
	Value string `json:"value" validate:"required,email"`
}

type usernameAvailabilityQuery struct {
	Value string `json:"value" validate:"required"`
}

type AvailabilityResponse struct {
	IsAvailable bool `json:"is_available"`
}

// Email handles GET /availability/email?value=
func (h *AvailabilityHandler) Email(w http.ResponseWriter, r *http.Request) {
	q := emailAvailabilityQuery{Value: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("value")))}
	if err := ValidateRequest(q); err != nil {
		writeServiceError(w, err)
		return
	}

	ok, err := h.checker.EmailAvailable(r.Context(), q.Value)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, AvailabilityResponse{IsAvailable: ok})
}

// Username handles GET /availability/username?value=
func (h *AvailabilityHandler) Username(w http.ResponseWriter, r *http.Request) {
	q := usernameAvailabilityQuery{Value: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("value")))}
	if err := ValidateRequest(q); err != nil {
		writeServiceError(w, err)
		return
	}

	ok, err := h.checker.UsernameAvailable(r.Context(), q.Value)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, AvailabilityResponse{IsAvailable: ok})
}
