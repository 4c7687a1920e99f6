package http_test

import (
	"crypto/tls"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

func TestExtractClientIP(t *testing.T) {
	internal := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8", "::1/128"}}

	tests := []struct {
		name   string
		remote string
		xff    string
		realIP string
		config *pkghttp.IPConfig
		want   string
	}{
		{
			name:   "untrusted peer cannot spoof",
			remote: "203.0.113.10:54321",
			xff:    "1.2.3.4, 5.6.7.8",
			realIP: "192.168.1.1",
			config: internal,
			want:   "203.0.113.10",
		},
		{
			name:   "trusted proxy forwards the first address",
			remote: "10.0.0.5:54321",
			xff:    "203.0.113.42, 203.0.113.43, 10.0.0.5",
			config: internal,
			want:   "203.0.113.42",
		},
		{
			name:   "invalid forwarded entries are skipped",
			remote: "10.0.0.5:54321",
			xff:    "garbage, 203.0.113.7",
			config: internal,
			want:   "203.0.113.7",
		},
		{
			name:   "x-real-ip when no forwarded-for",
			remote: "10.0.0.5:54321",
			realIP: "203.0.113.9",
			config: internal,
			want:   "203.0.113.9",
		},
		{
			name:   "ipv6 proxy",
			remote: "[::1]:54321",
			xff:    "2001:db8::1",
			config: internal,
			want:   "2001:db8::1",
		},
		{
			name:   "nil config",
			remote: "203.0.113.10:54321",
			xff:    "1.2.3.4",
			want:   "203.0.113.10",
		},
		{
			name:   "invalid cidrs trust nobody",
			remote: "203.0.113.10:54321",
			xff:    "1.2.3.4",
			config: &pkghttp.IPConfig{TrustedProxies: []string{"invalid-cidr-range"}},
			want:   "203.0.113.10",
		},
		{
			name:   "localhost claim from outside is ignored",
			remote: "203.0.113.10:54321",
			xff:    "127.0.0.1",
			config: internal,
			want:   "203.0.113.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			assert.Equal(t, tt.want, pkghttp.ExtractClientIP(req, tt.config))
		})
	}
}

func TestRequestURL(t *testing.T) {
	trusted := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	t.Run("direct", func(t *testing.T) {
		req := httptest.NewRequest("GET", "http://api.example.com/api/v1/users?page=2", nil)
		req.Header.Set("X-Forwarded-Proto", "https")

		u := pkghttp.RequestURL(req, trusted)
		assert.Equal(t, "http://api.example.com/api/v1/users?page=2", u.String())
	})

	t.Run("tls", func(t *testing.T) {
		req := httptest.NewRequest("GET", "http://api.example.com/api/v1/users", nil)
		req.TLS = &tls.ConnectionState{}

		assert.Equal(t, "https", pkghttp.RequestURL(req, nil).Scheme)
	})

	t.Run("behind trusted proxy", func(t *testing.T) {
		req := httptest.NewRequest("GET", "http://backend:8080/api/v1/users", nil)
		req.RemoteAddr = "10.1.2.3:1234"
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-Host", "roster.example.com")

		u := pkghttp.RequestURL(req, trusted)
		assert.Equal(t, "https://roster.example.com/api/v1/users", u.String())
	})

	t.Run("bogus forwarded proto", func(t *testing.T) {
		req := httptest.NewRequest("GET", "http://backend/api/v1/users", nil)
		req.RemoteAddr = "10.1.2.3:1234"
		req.Header.Set("X-Forwarded-Proto", "gopher")

		assert.Equal(t, "http", pkghttp.RequestURL(req, trusted).Scheme)
	})
}
