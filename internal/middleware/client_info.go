package middleware

import (
	"net/http"

	"github.com/BradenHooton/roster/internal/services"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// ClientInfo stores the caller's address and user agent for audit entries
func ClientInfo(ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := services.WithClientInfo(r.Context(), services.ClientInfo{
				IP:        pkghttp.ExtractClientIP(r, ipConfig),
				UserAgent: r.UserAgent(),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
