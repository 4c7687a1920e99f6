package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/roster/internal/services"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

func TestCORS(t *testing.T) {
	handler := CORS(DefaultCORSConfig([]string{"https://app.example.com"}))(okHandler)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "PATCH")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestSecureLogger_RedactsQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := SecureLogger(logger)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/search?query=jane&limit=5&token=abc", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	path := entry["path"].(string)
	assert.True(t, strings.HasPrefix(path, "/api/v1/users/search?"))
	assert.Contains(t, path, "limit=5")
	assert.NotContains(t, path, "abc")
	assert.Equal(t, float64(http.StatusOK), entry["status"])
}

type recordingAlerter struct {
	mu       sync.Mutex
	subjects []string
	done     chan struct{}
}

func (a *recordingAlerter) Alert(_ context.Context, subject, _ string) error {
	a.mu.Lock()
	a.subjects = append(a.subjects, subject)
	a.mu.Unlock()
	close(a.done)
	return nil
}

func TestRecoverer(t *testing.T) {
	alerter := &recordingAlerter{done: make(chan struct{})}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := Recoverer(logger, alerter)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, pkghttp.CodeServer, body.ErrorCode)

	select {
	case <-alerter.done:
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not sent")
	}
	alerter.mu.Lock()
	defer alerter.mu.Unlock()
	assert.Equal(t, []string{"Unhandled error on GET /api/v1/users"}, alerter.subjects)
}

func TestClientInfo(t *testing.T) {
	var got services.ClientInfo
	handler := ClientInfo(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = services.ClientInfoFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	req.Header.Set("User-Agent", "roster-test")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, services.ClientInfo{IP: "203.0.113.5", UserAgent: "roster-test"}, got)
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/things/{id}", "418"))
	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/things/{id}", "418"))

	assert.Equal(t, float64(2), after-before)
}
