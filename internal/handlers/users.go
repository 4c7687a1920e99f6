package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/pagination"
	"github.com/BradenHooton/roster/internal/services"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// UserService defines the user management logic used by UserHandler
type UserService interface {
	ListUsers(ctx context.Context, query url.Values, v pagination.Variant, req pagination.Request) (pagination.Page[models.User], error)
	SearchUsers(ctx context.Context, term string, query url.Values, v pagination.Variant, req pagination.Request) (pagination.Page[models.User], error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, actorID int64, in services.CreateUserInput) (*models.User, error)
	UpdateUser(ctx context.Context, actorID, id int64, changes models.UserChanges, password *string) (*models.User, error)
	DeleteUser(ctx context.Context, actorID, id int64) error
}

// UserHandler handles user management HTTP requests
type UserHandler struct {
	service  UserService
	pictures PictureResolver
	limits   pagination.Limits
	ipConfig *pkghttp.IPConfig
}

func NewUserHandler(service UserService, pictures PictureResolver, limits pagination.Limits, ipConfig *pkghttp.IPConfig) *UserHandler {
	return &UserHandler{
		service:  service,
		pictures: pictures,
		limits:   limits,
		ipConfig: ipConfig,
	}
}

type CreateUserRequest struct {
	Email                string   `json:"email" validate:"required,email,max=255"`
	Username             string   `json:"username" validate:"required,username,max=30"`
	Password             string   `json:"password" validate:"required,max=100,password,eqfield=PasswordConfirmation"`
	PasswordConfirmation string   `json:"password_confirmation"`
	Active               *bool    `json:"active"`
	EmailVerified        *bool    `json:"email_verified"`
	Roles                []string `json:"roles" validate:"omitempty,dive,required"`
	FirstName            string   `json:"first_name" validate:"required,max=255"`
	LastName             string   `json:"last_name" validate:"required,max=255"`
	ProfileRequest
}

// UpdateUserRequest is a partial update; absent fields are left untouched
type UpdateUserRequest struct {
	Email                *string  `json:"email" validate:"omitempty,email,max=255"`
	Username             *string  `json:"username" validate:"omitempty,username,max=30"`
	Password             *string  `json:"password" validate:"omitempty,max=100,password,eqfield=PasswordConfirmation"`
	PasswordConfirmation *string  `json:"password_confirmation"`
	Active               *bool    `json:"active"`
	EmailVerified        *bool    `json:"email_verified"`
	Roles                []string `json:"roles" validate:"omitempty,dive,required"`
	ProfileRequest
}

// ListUsers returns a filtered, sorted page of users
//
// Query: active, verified, email, username and role filters, sort/sort_by,
// limit, page or cursor, paginator (length_aware, simple or cursor).
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	v, req := h.pageRequest(r)

	page, err := h.service.ListUsers(r.Context(), r.URL.Query(), v, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WritePage(w, usersToResponse(r.Context(), page.Data, h.pictures), page.Pagination)
}

// SearchUsers matches the query parameter against emails, usernames and names
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	v, req := h.pageRequest(r)

	term := strings.TrimSpace(r.URL.Query().Get("query"))
	page, err := h.service.SearchUsers(r.Context(), term, r.URL.Query(), v, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WritePage(w, usersToResponse(r.Context(), page.Data, h.pictures), page.Pagination)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, userToResponse(r.Context(), user, h.pictures))
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req CreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	profile := req.ProfileRequest.profile()
	profile.FirstName = req.FirstName
	profile.LastName = req.LastName

	user, err := h.service.CreateUser(r.Context(), p.User.ID, services.CreateUserInput{
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Username:      strings.TrimSpace(req.Username),
		Password:      req.Password,
		Active:        req.Active,
		EmailVerified: req.EmailVerified,
		Roles:         req.Roles,
		Profile:       profile,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusCreated, userToResponse(r.Context(), user, h.pictures))
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	changes := models.UserChanges{
		Email:         normalizeEmail(req.Email),
		Username:      trimmed(req.Username),
		Active:        req.Active,
		EmailVerified: req.EmailVerified,
		Roles:         req.Roles,
		Profile:       req.ProfileRequest.changes(),
	}

	user, err := h.service.UpdateUser(r.Context(), p.User.ID, id, changes, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, userToResponse(r.Context(), user, h.pictures))
}

// DeleteUser soft deletes a user
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), p.User.ID, id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pageRequest reads the paginator and page parameters. Unknown paginators
// fall back to length_aware rather than failing the request.
func (h *UserHandler) pageRequest(r *http.Request) (pagination.Variant, pagination.Request) {
	v := pagination.LengthAware
	if raw := r.URL.Query().Get("paginator"); raw != "" {
		if parsed, err := pagination.ParseVariant(raw); err == nil {
			v = parsed
		}
	}
	return v, pagination.RequestFromURL(pkghttp.RequestURL(r, h.ipConfig), h.limits)
}

// userIDParam parses the {id} route parameter; malformed ids are not found
func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		pkghttp.WriteNotFound(w, "Resource not found")
		return 0, false
	}
	return id, true
}

func normalizeEmail(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	return &v
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
