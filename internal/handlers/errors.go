package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/pagination"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

const maxJSONBody = 1 << 20

func writeBadJSON(w http.ResponseWriter) {
	pkghttp.WriteBadRequest(w, "Invalid request body")
}

// writeServiceError maps service sentinels to the API error envelope
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		pkghttp.WriteValidationError(w, verr.Fields)
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		// uniqueness races past the pre-checks; the field is not known here
		pkghttp.WriteValidationError(w, nil)
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Unauthenticated.")
	case errors.Is(err, models.ErrAccountInactive):
		pkghttp.WriteForbidden(w, "Account is inactive.")
	case errors.Is(err, models.ErrSuperUserProtected):
		pkghttp.WriteForbidden(w, "A Super User cannot be modified")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "This action is unauthorized.")
	case errors.Is(err, models.ErrEmailNotVerified):
		pkghttp.WriteForbidden(w, "Your email address is not verified.")
	case errors.Is(err, models.ErrAlreadyVerified):
		pkghttp.WriteBadRequest(w, "Email address is already verified")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Bad request")
	case errors.Is(err, models.ErrTooManyRequests):
		pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
	case errors.Is(err, models.ErrIncorrectOldPassword):
		pkghttp.WriteIncorrectOldPassword(w)
	case errors.Is(err, models.ErrDependency):
		pkghttp.WriteDependencyError(w, "A required service is unavailable")
	case errors.Is(err, pagination.ErrUnsupportedPaginator):
		pkghttp.WriteInternalError(w, "Unsupported paginator")
	default:
		pkghttp.WriteInternalError(w, "Something went wrong.")
	}
}
