package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/config"
	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/events"
	"github.com/BradenHooton/roster/internal/handlers"
	middlewareCustom "github.com/BradenHooton/roster/internal/middleware"
	"github.com/BradenHooton/roster/internal/pagination"
	"github.com/BradenHooton/roster/internal/repositories"
	"github.com/BradenHooton/roster/internal/routes"
	"github.com/BradenHooton/roster/internal/schema"
	"github.com/BradenHooton/roster/internal/services"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// SentEmail represents a captured email message
type SentEmail struct {
	To      []string
	Subject string
	Token   string
}

// CaptureMailer records outgoing mail for test assertions
type CaptureMailer struct {
	SentEmails []SentEmail
	mu         sync.Mutex
}

func (m *CaptureMailer) record(e SentEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, e)
	return nil
}

func (m *CaptureMailer) SendWelcome(_ context.Context, to, _ string) error {
	return m.record(SentEmail{To: []string{to}, Subject: "welcome"})
}

func (m *CaptureMailer) SendVerification(_ context.Context, to, token string, _ time.Time) error {
	return m.record(SentEmail{To: []string{to}, Subject: "verification", Token: token})
}

func (m *CaptureMailer) SendPasswordReset(_ context.Context, to, token string, _ time.Time) error {
	return m.record(SentEmail{To: []string{to}, Subject: "password_reset", Token: token})
}

func (m *CaptureMailer) SendAlert(_ context.Context, to []string, subject, _ string) error {
	return m.record(SentEmail{To: to, Subject: subject})
}

// LastEmail returns the most recent mail of the given subject sent to addr
func (m *CaptureMailer) LastEmail(addr, subject string) *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.SentEmails) - 1; i >= 0; i-- {
		e := m.SentEmails[i]
		if e.Subject == subject && len(e.To) > 0 && e.To[0] == addr {
			return &e
		}
	}
	return nil
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Mailer *CaptureMailer
	Config *config.Config
	logger *slog.Logger
}

// NewTestServer wires the full application against db. cache may be nil
// for an in-memory schema cache.
func NewTestServer(db *database.DB, cache schema.Cache) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:           "test-secret-32-characters-long-for-testing",
			AccessTokenExpiry:   time.Hour,
			VerificationExpiry:  24 * time.Hour,
			PasswordResetExpiry: time.Hour,
			CleanupInterval:     time.Hour,
			AuditRetentionDays:  90,
		},
		Schema: config.SchemaConfig{
			MigrationsDir: MigrationsDir,
			CacheDriver:   "memory",
			CacheSize:     128,
		},
		Pagination: config.PaginationConfig{
			DefaultPageSize: 10,
			MaxPageSize:     50,
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
			TrustedProxies: []string{},
		},
	}

	if cache == nil {
		memCache, err := schema.NewMemoryCache(cfg.Schema.CacheSize)
		if err != nil {
			return nil, err
		}
		cache = memCache
	}

	introspector := schema.NewIntrospector(
		schema.NewInformationSchemaSource(db.SQLDB()),
		cache,
		schema.DirFingerprint{Dir: cfg.Schema.MigrationsDir},
		logger,
	)

	userRepo := repositories.NewUserRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)
	countryRepo := repositories.NewCountryRepository(db)
	verificationRepo := repositories.NewEmailVerificationRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)

	mailer := &CaptureMailer{}
	publisher := events.NopPublisher{}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	auditService := services.NewAuditService(auditRepo, logger)
	alertService := services.NewAlertService(userRepo, mailer, nil, logger)
	verificationService := services.NewEmailVerificationService(verificationRepo, userRepo, mailer, auditService, logger, cfg.Auth.VerificationExpiry)
	passwordService := services.NewPasswordService(resetRepo, userRepo, tokenRepo, mailer, auditService, nil, logger, cfg.Auth.PasswordResetExpiry)
	authService := services.NewAuthService(userRepo, tokenRepo, countryRepo, tokenManager, verificationService, mailer, publisher, auditService, nil, logger)
	userService := services.NewUserService(userRepo, countryRepo, introspector, publisher, auditService, logger)
	profileService := services.NewProfileService(userRepo, countryRepo, nil, verificationService, publisher, auditService, logger, 0)
	countryService := services.NewCountryService(countryRepo, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	limits := pagination.Limits{Default: cfg.Pagination.DefaultPageSize, Max: cfg.Pagination.MaxPageSize}

	rateLimits := middlewareCustom.DefaultRateLimits()
	rateLimits.Login = 1000
	rateLimits.Register = 1000
	rateLimits.PasswordReset = 1000

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.ClientInfo(ipConfig))
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(middlewareCustom.Recoverer(logger, alertService))

	routes.RegisterRoutes(r, routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService, verificationService, passwordService, profileService),
		Users:        handlers.NewUserHandler(userService, profileService, limits, ipConfig),
		Profile:      handlers.NewProfileHandler(profileService, 0),
		Availability: handlers.NewAvailabilityHandler(userService),
		Countries:    handlers.NewCountryHandler(countryService),
		Health:       handlers.NewHealthHandler(map[string]handlers.Pinger{"database": db}),
	}, routes.Options{
		Authenticate: auth.Authenticate(tokenManager, tokenRepo, userRepo, logger),
		RateLimits:   rateLimits,
		IPConfig:     ipConfig,
	})

	return &TestServer{
		Server: httptest.NewServer(r),
		DB:     db,
		Mailer: mailer,
		Config: cfg,
		logger: logger,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with access token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + accessToken,
	}
	return ts.Request(method, path, body, headers)
}

// Login signs in and returns the bearer token
func (ts *TestServer) Login(email, password string) (string, error) {
	resp, err := ts.Request("POST", "/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return "", fmt.Errorf("login returned %d", resp.StatusCode)
	}

	var token handlers.AuthTokenResponse
	if err := ParseData(resp, &token); err != nil {
		return "", err
	}
	return token.Token, nil
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ParseData decodes the data member of a success envelope into target
func ParseData(resp *http.Response, target interface{}) error {
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := ParseJSONResponse(resp, &envelope); err != nil {
		return err
	}
	if !envelope.Success {
		return fmt.Errorf("response was not successful")
	}
	return json.Unmarshal(envelope.Data, target)
}

// ParseError decodes an error envelope
func ParseError(resp *http.Response) (pkghttp.ErrorResponse, error) {
	var errResp pkghttp.ErrorResponse
	err := ParseJSONResponse(resp, &errResp)
	return errResp, err
}
