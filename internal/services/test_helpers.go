package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/BradenHooton/roster/internal/events"
	"github.com/BradenHooton/roster/internal/filters"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/internal/pagination"
	sq "github.com/Masterminds/squirrel"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	ListQueryFunc          func() filters.Query
	SearchQueryFunc        func(term string) filters.Query
	PaginateFunc           func(ctx context.Context, v pagination.Variant, q filters.Query, req pagination.Request) (pagination.Result[models.User], error)
	GetByIDFunc            func(ctx context.Context, id int64) (*models.User, error)
	GetByEmailFunc         func(ctx context.Context, email string) (*models.User, error)
	EmailExistsFunc        func(ctx context.Context, email string) (bool, error)
	UsernameExistsFunc     func(ctx context.Context, username string) (bool, error)
	CreateFunc             func(ctx context.Context, user *models.User, roles []string) (*models.User, error)
	UpdateFunc             func(ctx context.Context, id int64, changes models.UserChanges) (*models.User, error)
	SoftDeleteFunc         func(ctx context.Context, id int64, at time.Time) error
	PermissionsFunc        func(ctx context.Context, userID int64) ([]string, error)
	ListWithPermissionFunc func(ctx context.Context, permission string) ([]models.User, error)
}

func (m *MockUserRepository) ListQuery() filters.Query {
	if m.ListQueryFunc != nil {
		return m.ListQueryFunc()
	}
	return testUsersQuery()
}

func (m *MockUserRepository) SearchQuery(term string) filters.Query {
	if m.SearchQueryFunc != nil {
		return m.SearchQueryFunc(term)
	}
	return testUsersQuery()
}

func (m *MockUserRepository) Paginate(ctx context.Context, v pagination.Variant, q filters.Query, req pagination.Request) (pagination.Result[models.User], error) {
	if m.PaginateFunc != nil {
		return m.PaginateFunc(ctx, v, q, req)
	}
	return &pagination.SimpleResult[models.User]{CurrentPage: 1, PerPage: req.PerPage, Path: req.Path}, nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.EmailExistsFunc != nil {
		return m.EmailExistsFunc(ctx, email)
	}
	return false, nil
}

func (m *MockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	if m.UsernameExistsFunc != nil {
		return m.UsernameExistsFunc(ctx, username)
	}
	return false, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User, roles []string) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user, roles)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id int64, changes models.UserChanges) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, changes)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, id, at)
	}
	return nil
}

func (m *MockUserRepository) Permissions(ctx context.Context, userID int64) ([]string, error) {
	if m.PermissionsFunc != nil {
		return m.PermissionsFunc(ctx, userID)
	}
	return []string{}, nil
}

func (m *MockUserRepository) ListWithPermission(ctx context.Context, permission string) ([]models.User, error) {
	if m.ListWithPermissionFunc != nil {
		return m.ListWithPermissionFunc(ctx, permission)
	}
	return []models.User{}, nil
}

// MockTokenRepository implements TokenRepository for testing
type MockTokenRepository struct {
	CreateFunc           func(ctx context.Context, userID int64, name, tokenID string, expiresAt time.Time) (*models.AccessToken, error)
	ListByUserFunc       func(ctx context.Context, userID int64) ([]models.AccessToken, error)
	DeleteByTokenIDFunc  func(ctx context.Context, tokenID string) error
	DeleteForUserFunc    func(ctx context.Context, userID int64, ids []int64) (int64, error)
	DeleteAllForUserFunc func(ctx context.Context, userID int64) (int64, error)
}

func (m *MockTokenRepository) Create(ctx context.Context, userID int64, name, tokenID string, expiresAt time.Time) (*models.AccessToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, name, tokenID, expiresAt)
	}
	return &models.AccessToken{ID: 1, UserID: userID, Name: name, TokenID: tokenID, ExpiresAt: expiresAt}, nil
}

func (m *MockTokenRepository) ListByUser(ctx context.Context, userID int64) ([]models.AccessToken, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []models.AccessToken{}, nil
}

func (m *MockTokenRepository) DeleteByTokenID(ctx context.Context, tokenID string) error {
	if m.DeleteByTokenIDFunc != nil {
		return m.DeleteByTokenIDFunc(ctx, tokenID)
	}
	return nil
}

func (m *MockTokenRepository) DeleteForUser(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if m.DeleteForUserFunc != nil {
		return m.DeleteForUserFunc(ctx, userID, ids)
	}
	return int64(len(ids)), nil
}

func (m *MockTokenRepository) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	if m.DeleteAllForUserFunc != nil {
		return m.DeleteAllForUserFunc(ctx, userID)
	}
	return 0, nil
}

// MockEmailVerificationRepository implements EmailVerificationRepository for testing
type MockEmailVerificationRepository struct {
	CreateFunc            func(ctx context.Context, userID int64, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error)
	GetByTokenHashFunc    func(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error)
	GetLatestByUserIDFunc func(ctx context.Context, userID int64) (*models.EmailVerificationToken, error)
	MarkAsUsedFunc        func(ctx context.Context, id int64) error
	DeleteByUserIDFunc    func(ctx context.Context, userID int64) error
}

func (m *MockEmailVerificationRepository) Create(ctx context.Context, userID int64, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, tokenHash, email, expiresAt)
	}
	return &models.EmailVerificationToken{ID: 1, UserID: userID, TokenHash: tokenHash, Email: email, ExpiresAt: expiresAt, CreatedAt: time.Now()}, nil
}

func (m *MockEmailVerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockEmailVerificationRepository) GetLatestByUserID(ctx context.Context, userID int64) (*models.EmailVerificationToken, error) {
	if m.GetLatestByUserIDFunc != nil {
		return m.GetLatestByUserIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockEmailVerificationRepository) MarkAsUsed(ctx context.Context, id int64) error {
	if m.MarkAsUsedFunc != nil {
		return m.MarkAsUsedFunc(ctx, id)
	}
	return nil
}

func (m *MockEmailVerificationRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	if m.DeleteByUserIDFunc != nil {
		return m.DeleteByUserIDFunc(ctx, userID)
	}
	return nil
}

// MockPasswordResetRepository implements PasswordResetRepository for testing
type MockPasswordResetRepository struct {
	ReplaceFunc        func(ctx context.Context, email, tokenHash string, expiresAt time.Time) error
	GetByTokenHashFunc func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	DeleteByEmailFunc  func(ctx context.Context, email string) error
}

func (m *MockPasswordResetRepository) Replace(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, email, tokenHash, expiresAt)
	}
	return nil
}

func (m *MockPasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetRepository) DeleteByEmail(ctx context.Context, email string) error {
	if m.DeleteByEmailFunc != nil {
		return m.DeleteByEmailFunc(ctx, email)
	}
	return nil
}

// MockCountryRepository implements CountryRepository for testing
type MockCountryRepository struct {
	ListFunc   func(ctx context.Context) ([]models.Country, error)
	ExistsFunc func(ctx context.Context, id int64) (bool, error)
}

func (m *MockCountryRepository) List(ctx context.Context) ([]models.Country, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []models.Country{}, nil
}

func (m *MockCountryRepository) Exists(ctx context.Context, id int64) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, id)
	}
	return true, nil
}

// MockAuditLogRepository records every entry it is given
type MockAuditLogRepository struct {
	mu      sync.Mutex
	Entries []models.AuditLog
	Err     error
}

func (m *MockAuditLogRepository) Create(_ context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Entries = append(m.Entries, *log)
	return log, nil
}

// Events returns the recorded event types in order
func (m *MockAuditLogRepository) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e.EventType)
	}
	return out
}

type sentMail struct {
	Kind    string
	To      []string
	Subject string
	Token   string
}

// MockMailer records outgoing mail instead of sending it
type MockMailer struct {
	mu   sync.Mutex
	Sent []sentMail
	Err  error
}

func (m *MockMailer) record(mail sentMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, mail)
	return nil
}

func (m *MockMailer) SendWelcome(_ context.Context, to, name string) error {
	return m.record(sentMail{Kind: "welcome", To: []string{to}, Subject: name})
}

func (m *MockMailer) SendVerification(_ context.Context, to, token string, _ time.Time) error {
	return m.record(sentMail{Kind: "verification", To: []string{to}, Token: token})
}

func (m *MockMailer) SendPasswordReset(_ context.Context, to, token string, _ time.Time) error {
	return m.record(sentMail{Kind: "password_reset", To: []string{to}, Token: token})
}

func (m *MockMailer) SendAlert(_ context.Context, to []string, subject, _ string) error {
	return m.record(sentMail{Kind: "alert", To: to, Subject: subject})
}

// Kinds returns the kinds of mail sent, in order
func (m *MockMailer) Kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Sent))
	for _, s := range m.Sent {
		out = append(out, s.Kind)
	}
	return out
}

// MockObjectStore keeps objects in memory
type MockObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
	Deleted []string
	PutErr  error
}

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{Objects: map[string][]byte{}, Types: map[string]string{}}
}

func (m *MockObjectStore) Put(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = buf.Bytes()
	m.Types[key] = contentType
	return nil
}

func (m *MockObjectStore) URL(_ context.Context, key string) (string, error) {
	return "https://bucket.example.com/" + key + "?signed=1", nil
}

func (m *MockObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}

// MockPublisher records published events
type MockPublisher struct {
	mu     sync.Mutex
	Events []events.UserEvent
	Err    error
}

func (m *MockPublisher) Publish(_ context.Context, event events.UserEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// Types returns the published event types in order
func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}

// MockNotifier records notifications
type MockNotifier struct {
	Messages []string
	Err      error
}

func (m *MockNotifier) Notify(_ context.Context, text string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, text)
	return nil
}

// fakeSchema answers every column and table lookup from a fixed map
type fakeSchema map[string][]string

func (f fakeSchema) ColumnExists(_ context.Context, table, column string) (bool, error) {
	for _, c := range f[table] {
		if c == column {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeSchema) ColumnsExcept(_ context.Context, table string, excluded ...string) ([]string, error) {
	out := []string{}
	for _, c := range f[table] {
		if !slices.Contains(excluded, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f fakeSchema) TableExists(_ context.Context, table string) (bool, error) {
	_, ok := f[table]
	return ok, nil
}

var testSchema = fakeSchema{
	"users":         {"id", "email", "username", "active", "email_verified_at", "created_at"},
	"user_profiles": {"id", "user_id", "first_name", "last_name"},
}

func testUsersQuery() filters.Query {
	b := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select("users.*").
		From("users").
		Where(sq.Eq{"users.deleted_at": nil})
	return filters.NewQuery("users", b)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAudit() (*AuditService, *MockAuditLogRepository) {
	repo := &MockAuditLogRepository{}
	return NewAuditService(repo, testLogger()), repo
}

// NewTestUser creates an active, verified standard user with a profile
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
		Profile:         &models.UserProfile{UserID: id, FirstName: "Test", LastName: "User"},
		Roles:           []models.Role{{ID: 1, Name: models.RoleStandardUser}},
	}
}

// NewTestSuperUser creates a user holding the super_user role
func NewTestSuperUser(id int64) *models.User {
	u := NewTestUser(id, "root@example.com", "superuser")
	u.Roles = []models.Role{{ID: 4, Name: models.RoleSuperUser}}
	return u
}
