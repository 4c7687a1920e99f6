package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/services"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// AuthService defines the auth business logic used by AuthHandler
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput, clientName string) (*services.LoginResult, error)
	Login(ctx context.Context, email, password, clientName string) (*services.LoginResult, error)
	Logout(ctx context.Context, userID int64, tokenID string) error
	Tokens(ctx context.Context, userID int64) ([]models.AccessToken, error)
	Revoke(ctx context.Context, userID int64, ids []int64) (int64, error)
	RevokeAll(ctx context.Context, userID int64) (int64, error)
}

// EmailVerificationService defines the verification flow used by AuthHandler
type EmailVerificationService interface {
	Verify(ctx context.Context, plainToken string) (*models.User, error)
	Resend(ctx context.Context, user *models.User) error
}

// PasswordService defines the password reset flow used by AuthHandler
type PasswordService interface {
	Forgot(ctx context.Context, email string) error
	Reset(ctx context.Context, plainToken, email, password string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthService
	verification EmailVerificationService
	passwords    PasswordService
	pictures     PictureResolver
}

func NewAuthHandler(service AuthService, verification EmailVerificationService, passwords PasswordService, pictures PictureResolver) *AuthHandler {
	return &AuthHandler{
		service:      service,
		verification: verification,
		passwords:    passwords,
		pictures:     pictures,
	}
}

// Request DTOs

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	ClientName string `json:"client_name" validate:"omitempty,max=255"`
	WithUser   bool   `json:"with_user"`
}

type RegisterRequest struct {
	Email                string `json:"email" validate:"required,email,max=255"`
	Username             string `json:"username" validate:"required,username,max=30"`
	Password             string `json:"password" validate:"required,max=100,password,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation"`
	FirstName            string `json:"first_name" validate:"required,max=255"`
	LastName             string `json:"last_name" validate:"required,max=255"`
	ClientName           string `json:"client_name" validate:"omitempty,max=255"`
	ProfileRequest
}

type RevokeAccessRequest struct {
	TokenIDs json.RawMessage `json:"token_ids" validate:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token                string `json:"token" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,max=100,password,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type emailMessageResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// Register creates a standard user and signs them in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	profile := req.ProfileRequest.profile()
	profile.FirstName = req.FirstName
	profile.LastName = req.LastName

	result, err := h.service.Register(r.Context(), services.RegisterInput{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		Profile:  profile,
	}, req.ClientName)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	user := userToResponse(r.Context(), result.User, h.pictures)
	pkghttp.WriteData(w, http.StatusCreated, AuthTokenResponse{
		Token:     result.Token,
		TokenName: result.TokenName,
		ExpiresAt: result.ExpiresAt,
		User:      &user,
	})
}

// Login exchanges credentials for a bearer token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.ClientName)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteInvalidCredentials(w)
			return
		}
		writeServiceError(w, err)
		return
	}

	resp := AuthTokenResponse{
		Token:     result.Token,
		TokenName: result.TokenName,
		ExpiresAt: result.ExpiresAt,
	}
	if req.WithUser {
		user := userToResponse(r.Context(), result.User, h.pictures)
		resp.User = &user
	}

	pkghttp.WriteData(w, http.StatusOK, resp)
}

// Logout revokes the token used for this request
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	if err := h.service.Logout(r.Context(), p.User.ID, p.Token.TokenID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Tokens(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	tokens, err := h.service.Tokens(r.Context(), p.User.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, tokensToResponse(tokens))
}

// RevokeAccess deletes the listed tokens of the caller; "*" deletes all of them
func (h *AuthHandler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req RevokeAccessRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ids, all, err := parseTokenIDs(req.TokenIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if all {
		_, err = h.service.RevokeAll(r.Context(), p.User.ID)
	} else {
		_, err = h.service.Revoke(r.Context(), p.User.ID, ids)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) RevokeAllAccess(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	if _, err := h.service.RevokeAll(r.Context(), p.User.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.verification.Verify(r.Context(), req.Token); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Email successfully verified")
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	if err := h.verification.Resend(r.Context(), p.User); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, emailMessageResponse{
		Message: "Email verification sent",
		Email:   p.User.Email,
	})
}

// ForgotPassword always succeeds so callers cannot probe for accounts
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.passwords.Forgot(r.Context(), email); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, emailMessageResponse{
		Message: "Password reset request sent",
		Email:   email,
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.passwords.Reset(r.Context(), req.Token, strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Unable to reset password")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Password reset was successful")
}

// parseTokenIDs accepts "*", ["*"] or a list of numeric token ids
func parseTokenIDs(raw json.RawMessage) ([]int64, bool, error) {
	invalid := models.NewValidationError("token_ids", "The token ids field must be \"*\" or a list of token ids.")

	raw = bytes.TrimSpace(raw)
	var star string
	if err := json.Unmarshal(raw, &star); err == nil {
		if star == "*" {
			return nil, true, nil
		}
		return nil, false, invalid
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil, false, invalid
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v == "*" {
				return nil, true, nil
			}
			return nil, false, invalid
		case float64:
			if v != float64(int64(v)) || v <= 0 {
				return nil, false, invalid
			}
			ids = append(ids, int64(v))
		default:
			return nil, false, invalid
		}
	}
	return ids, false, nil
}

// requirePrincipal returns the authenticated caller or writes a 401
func requirePrincipal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil || p.User == nil {
		pkghttp.WriteUnauthorized(w, "Unauthenticated.")
		return nil, false
	}
	return p, true
}
