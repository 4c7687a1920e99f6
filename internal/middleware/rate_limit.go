package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/BradenHooton/roster/internal/auth"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// RateLimitConfig holds per-minute budgets for the throttled route groups
type RateLimitConfig struct {
	Login         int
	Register      int
	PasswordReset int
	Availability  int
	Verification  int
	Authenticated int
}

func DefaultRateLimits() RateLimitConfig {
	return RateLimitConfig{
		Login:         5,
		Register:      5,
		PasswordReset: 5,
		Availability:  30,
		Verification:  6,
		Authenticated: 120,
	}
}

// RateLimitByIP limits requests per client address. ipConfig decides
// whether forwarding headers are believed.
func RateLimitByIP(perMinute int, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

// RateLimitByUser limits requests per authenticated user, falling back to
// the client address before authentication has run.
func RateLimitByUser(perMinute int, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if p := auth.PrincipalFromContext(r.Context()); p != nil {
				return "user:" + strconv.FormatInt(p.User.ID, 10), nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

func tooManyRequests(w http.ResponseWriter, _ *http.Request) {
	pkghttp.WriteTooManyRequests(w, "Too many requests. Please slow down.")
}
