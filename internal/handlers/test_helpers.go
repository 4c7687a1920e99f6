package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/pagination"
	"github.com/BradenHooton/roster/internal/services"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewMultipartRequest creates a multipart/form-data request carrying one file
func NewMultipartRequest(t *testing.T, method, url, field, filename string, content []byte) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// WithPrincipal authenticates the request as user holding permissions
func WithPrincipal(req *http.Request, user *models.User, permissions ...string) *http.Request {
	p := &auth.Principal{
		User: user,
		Token: &models.AccessToken{
			ID:        1,
			UserID:    user.ID,
			Name:      "api_token",
			TokenID:   "test-token-id",
			ExpiresAt: time.Now().Add(time.Hour),
		},
		Permissions: permissions,
	}
	return req.WithContext(auth.WithPrincipal(req.Context(), p))
}

// NewTestUser returns an active, verified user with a profile
func NewTestUser(id int64, email, username string) *models.User {
	now := time.Now()
	return &models.User{
		ID:              id,
		Email:           email,
		Username:        username,
		Active:          true,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
		Roles:           []models.Role{{ID: 1, Name: models.RoleStandardUser}},
		Profile:         &models.UserProfile{UserID: id, FirstName: "Test", LastName: "User"},
	}
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertDataResponse checks the success envelope and decodes its data into target
func AssertDataResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	AssertJSONResponse(t, w, expectedStatus, &envelope)
	assert.True(t, envelope.Success, "success should be true")

	if target != nil {
		assert.NoError(t, json.Unmarshal(envelope.Data, target), "Failed to decode data")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode pkghttp.ErrorCode) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.False(t, resp.Success)
	assert.Equal(t, expectedCode, resp.ErrorCode, "Error code mismatch")
	assert.NotEmpty(t, resp.ErrorMessage, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthService for testing
type MockAuthService struct {
	RegisterFunc  func(ctx context.Context, in services.RegisterInput, clientName string) (*services.LoginResult, error)
	LoginFunc     func(ctx context.Context, email, password, clientName string) (*services.LoginResult, error)
	LogoutFunc    func(ctx context.Context, userID int64, tokenID string) error
	TokensFunc    func(ctx context.Context, userID int64) ([]models.AccessToken, error)
	RevokeFunc    func(ctx context.Context, userID int64, ids []int64) (int64, error)
	RevokeAllFunc func(ctx context.Context, userID int64) (int64, error)
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput, clientName string) (*services.LoginResult, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, in, clientName)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, clientName string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, clientName)
}

func (m *MockAuthService) Logout(ctx context.Context, userID int64, tokenID string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, userID, tokenID)
}

func (m *MockAuthService) Tokens(ctx context.Context, userID int64) ([]models.AccessToken, error) {
	if m.TokensFunc == nil {
		return []models.AccessToken{}, nil
	}
	return m.TokensFunc(ctx, userID)
}

func (m *MockAuthService) Revoke(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if m.RevokeFunc == nil {
		return int64(len(ids)), nil
	}
	return m.RevokeFunc(ctx, userID, ids)
}

func (m *MockAuthService) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	if m.RevokeAllFunc == nil {
		return 0, nil
	}
	return m.RevokeAllFunc(ctx, userID)
}

// MockEmailVerificationService for testing
type MockEmailVerificationService struct {
	VerifyFunc func(ctx context.Context, plainToken string) (*models.User, error)
	ResendFunc func(ctx context.Context, user *models.User) error
}

func (m *MockEmailVerificationService) Verify(ctx context.Context, plainToken string) (*models.User, error) {
	if m.VerifyFunc == nil {
		return nil, models.ErrBadRequest
	}
	return m.VerifyFunc(ctx, plainToken)
}

func (m *MockEmailVerificationService) Resend(ctx context.Context, user *models.User) error {
	if m.ResendFunc == nil {
		return nil
	}
	return m.ResendFunc(ctx, user)
}

// MockPasswordService for testing
type MockPasswordService struct {
	ForgotFunc func(ctx context.Context, email string) error
	ResetFunc  func(ctx context.Context, plainToken, email, password string) error
}

func (m *MockPasswordService) Forgot(ctx context.Context, email string) error {
	if m.ForgotFunc == nil {
		return nil
	}
	return m.ForgotFunc(ctx, email)
}

func (m *MockPasswordService) Reset(ctx context.Context, plainToken, email, password string) error {
	if m.ResetFunc == nil {
		return models.ErrBadRequest
	}
	return m.ResetFunc(ctx, plainToken, email, password)
}

// MockUserService implements UserService for testing
type MockUserService struct {
	ListUsersFunc   func(ctx context.Context, query url.Values, v pagination.Variant, req pagination.Request) (pagination.Page[models.User], error)
	SearchUsersFunc func(ctx context.Context, term string, query url.Values, v pagination.Variant, req pagination.Request) (pagination.Page[models.User], error)
	GetUserFunc     func(ctx context.Context, id int64) (*models.User, error)
	CreateUserFunc  func(ctx context.Context, actorID int64, in services.CreateUserInput) (*models.User, error)
	UpdateUserFunc  func(ctx context.Context, actorID, id int64, changes models.UserChanges, password *string) (*models.User, error)
	DeleteUserFunc  func(ctx context.Context, actorID, id int64) error
}

func (m *MockUserService) ListUsers(ctx context.Context, query url.Values, v pagination.Variant, req pagination.Request) (pagination.Page[models.User], error) {
	if m.ListUsersFunc == nil {
		return pagination.Page[models.User]{Data: []models.User{}}, nil
	}
	return m.ListUsersFunc(ctx, query, v, req)
}

func (m *MockUserService) SearchUsers(ctx context.Context, term string, query url.Values, v pagination.Variant, req pagination.Request) (pagination.Page[models.User], error) {
	if m.SearchUsersFunc == nil {
		return pagination.Page[models.User]{Data: []models.User{}}, nil
	}
	return m.SearchUsersFunc(ctx, term, query, v, req)
}

func (m *MockUserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if m.GetUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserFunc(ctx, id)
}

func (m *MockUserService) CreateUser(ctx context.Context, actorID int64, in services.CreateUserInput) (*models.User, error) {
	if m.CreateUserFunc == nil {
		return nil, models.ErrConflict
	}
	return m.CreateUserFunc(ctx, actorID, in)
}

func (m *MockUserService) UpdateUser(ctx context.Context, actorID, id int64, changes models.UserChanges, password *string) (*models.User, error) {
	if m.UpdateUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateUserFunc(ctx, actorID, id, changes, password)
}

func (m *MockUserService) DeleteUser(ctx context.Context, actorID, id int64) error {
	if m.DeleteUserFunc == nil {
		return nil
	}
	return m.DeleteUserFunc(ctx, actorID, id)
}

// MockProfileService implements ProfileService for testing
type MockProfileService struct {
	GetFunc            func(ctx context.Context, userID int64) (*models.User, []string, error)
	UpdateFunc         func(ctx context.Context, user *models.User, in services.ProfileChangesInput) (*models.User, error)
	ChangePasswordFunc func(ctx context.Context, user *models.User, oldPassword, newPassword string) error
	UploadPictureFunc  func(ctx context.Context, actorID, targetID int64, body io.ReadSeeker, size int64) (*models.User, error)
	PictureURLFunc     func(ctx context.Context, user *models.User) *string
}

func (m *MockProfileService) Get(ctx context.Context, userID int64) (*models.User, []string, error) {
	if m.GetFunc == nil {
		return nil, nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, userID)
}

func (m *MockProfileService) Update(ctx context.Context, user *models.User, in services.ProfileChangesInput) (*models.User, error) {
	if m.UpdateFunc == nil {
		return user, nil
	}
	return m.UpdateFunc(ctx, user, in)
}

func (m *MockProfileService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, user, oldPassword, newPassword)
}

func (m *MockProfileService) UploadPicture(ctx context.Context, actorID, targetID int64, body io.ReadSeeker, size int64) (*models.User, error) {
	if m.UploadPictureFunc == nil {
		return nil, models.ErrDependency
	}
	return m.UploadPictureFunc(ctx, actorID, targetID, body, size)
}

func (m *MockProfileService) PictureURL(ctx context.Context, user *models.User) *string {
	if m.PictureURLFunc == nil {
		return nil
	}
	return m.PictureURLFunc(ctx, user)
}

// MockAvailabilityChecker reports every value in Taken as unavailable
type MockAvailabilityChecker struct {
	Taken map[string]bool
	Err   error
}

func (m *MockAvailabilityChecker) EmailAvailable(_ context.Context, email string) (bool, error) {
	return !m.Taken[email], m.Err
}

func (m *MockAvailabilityChecker) UsernameAvailable(_ context.Context, username string) (bool, error) {
	return !m.Taken[username], m.Err
}

type MockCountryLister struct {
	Countries []models.Country
	Err       error
}

func (m *MockCountryLister) List(context.Context) ([]models.Country, error) {
	return m.Countries, m.Err
}

// WithChiRouteContext adds chi URL parameters to request context for testing
// This helper allows tests to set URL parameters that would normally be extracted
// by the Chi router from the URL path.
//
// Example usage:
//
//	req := httptest.NewRequest("PATCH", "/users/42", body)
//	req = WithChiRouteContext(req, map[string]string{
//	    "id": "42",
//	})
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// WithChiIDFromURL extracts the ID from a URL path and sets it as a chi route parameter
//
// Example usage:
//
//	req := httptest.NewRequest("GET", "/users/42", nil)
//	req = WithChiIDFromURL(req)  // sets "42" as the "id" param
func WithChiIDFromURL(r *http.Request) *http.Request {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")

	if len(parts) >= 2 {
		return WithChiRouteContext(r, map[string]string{
			"id": parts[1],
		})
	}

	return r
}
