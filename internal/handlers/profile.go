package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/services"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// ProfileService defines the self-service profile logic used by ProfileHandler
type ProfileService interface {
	Get(ctx context.Context, userID int64) (*models.User, []string, error)
	Update(ctx context.Context, user *models.User, in services.ProfileChangesInput) (*models.User, error)
	ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error
	UploadPicture(ctx context.Context, actorID, targetID int64, body io.ReadSeeker, size int64) (*models.User, error)
	PictureURL(ctx context.Context, user *models.User) *string
}

// ProfileHandler serves the caller's own account and profile pictures
type ProfileHandler struct {
	service   ProfileService
	maxUpload int64
}

func NewProfileHandler(service ProfileService, maxUpload int64) *ProfileHandler {
	if maxUpload <= 0 {
		maxUpload = services.DefaultMaxPictureBytes
	}
	return &ProfileHandler{service: service, maxUpload: maxUpload}
}

type UpdateProfileRequest struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Username *string `json:"username" validate:"omitempty,username,max=30"`
	ProfileRequest
}

type ChangePasswordRequest struct {
	OldPassword          string `json:"old_password" validate:"required"`
	Password             string `json:"password" validate:"required,max=100,password,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// GetProfile returns the caller with profile, roles and permissions
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	user, perms, err := h.service.Get(r.Context(), p.User.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := userToResponse(r.Context(), user, h.service)
	resp.Permissions = perms
	pkghttp.WriteData(w, http.StatusOK, resp)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.service.Update(r.Context(), p.User, services.ProfileChangesInput{
		Email:    normalizeEmail(req.Email),
		Username: trimmed(req.Username),
		Profile:  req.ProfileRequest.changes(),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, userToResponse(r.Context(), user, h.service))
}

func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), p.User, req.OldPassword, req.Password); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Password changed successfully")
}

// UploadPicture stores the multipart "photo" as the caller's picture
func (h *ProfileHandler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	h.upload(w, r, p.User.ID, p.User.ID)
}

// UploadUserPicture stores the multipart "photo" for the user in the path
func (h *ProfileHandler) UploadUserPicture(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	h.upload(w, r, p.User.ID, id)
}

func (h *ProfileHandler) upload(w http.ResponseWriter, r *http.Request, actorID, targetID int64) {
	// room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)

	file, header, err := r.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			pkghttp.WriteValidationError(w, map[string][]string{
				"photo": {"The photo field is too large."},
			})
			return
		}
		pkghttp.WriteValidationError(w, map[string][]string{
			"photo": {"The photo field is required."},
		})
		return
	}
	defer file.Close()

	user, err := h.service.UploadPicture(r.Context(), actorID, targetID, file, header.Size)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, userToResponse(r.Context(), user, h.service))
}
