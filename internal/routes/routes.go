package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/handlers"
	"github.com/BradenHooton/roster/internal/middleware"
	"github.com/BradenHooton/roster/internal/models"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Auth         *handlers.AuthHandler
	Users        *handlers.UserHandler
	Profile      *handlers.ProfileHandler
	Availability *handlers.AvailabilityHandler
	Countries    *handlers.CountryHandler
	Health       *handlers.HealthHandler
}

// Options configures authentication and throttling for the routes
type Options struct {
	Authenticate func(http.Handler) http.Handler
	RateLimits   middleware.RateLimitConfig
	IPConfig     *pkghttp.IPConfig
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, opts Options) {
	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		pkghttp.WriteUnknownRoute(w)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		pkghttp.WriteUnknownRoute(w)
	})

	router.Get("/health", h.Health.Health)
	router.Handle("/metrics", promhttp.Handler())

	limits := opts.RateLimits
	byIP := func(perMinute int) func(http.Handler) http.Handler {
		return middleware.RateLimitByIP(perMinute, opts.IPConfig)
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Public routes - no authentication required
		r.With(byIP(limits.Register)).Post("/auth/register", h.Auth.Register)
		r.With(byIP(limits.Login)).Post("/auth/login", h.Auth.Login)
		r.With(byIP(limits.Verification)).Post("/auth/email/verify", h.Auth.VerifyEmail)
		r.With(byIP(limits.PasswordReset)).Post("/auth/forgot-password", h.Auth.ForgotPassword)
		r.With(byIP(limits.PasswordReset)).Post("/auth/reset-password", h.Auth.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(byIP(limits.Availability))
			r.Get("/availability/email", h.Availability.Email)
			r.Get("/availability/username", h.Availability.Username)
		})

		r.Get("/countries", h.Countries.List)

		// Protected routes - authentication required
		r.Group(func(r chi.Router) {
			r.Use(opts.Authenticate)
			r.Use(middleware.RateLimitByUser(limits.Authenticated, opts.IPConfig))

			r.Post("/auth/logout", h.Auth.Logout)
			r.Get("/auth/tokens", h.Auth.Tokens)
			r.Post("/auth/revoke-access", h.Auth.RevokeAccess)
			r.Post("/auth/revoke-all-access", h.Auth.RevokeAllAccess)
			r.With(middleware.RateLimitByUser(limits.Verification, opts.IPConfig)).
				Post("/auth/email/resend", h.Auth.ResendVerification)

			// Verified accounts only
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireVerified)

				r.With(auth.RequirePermission(models.PermissionViewProfile)).Get("/profile", h.Profile.GetProfile)
				r.Group(func(r chi.Router) {
					r.Use(auth.RequirePermission(models.PermissionUpdateProfile))
					r.Patch("/profile", h.Profile.UpdateProfile)
					r.Patch("/profile/password", h.Profile.ChangePassword)
					r.Post("/profile/profile-picture", h.Profile.UploadPicture)
				})

				r.Route("/users", func(r chi.Router) {
					r.With(auth.RequirePermission(models.PermissionViewUsers)).Get("/", h.Users.ListUsers)
					r.With(auth.RequirePermission(models.PermissionViewUsers)).Get("/search", h.Users.SearchUsers)
					r.With(auth.RequirePermission(models.PermissionCreateUsers)).Post("/", h.Users.CreateUser)

					r.Route("/{id}", func(r chi.Router) {
						r.With(auth.RequirePermission(models.PermissionViewUsers)).Get("/", h.Users.GetUser)
						r.With(auth.RequirePermission(models.PermissionUpdateUsers)).Patch("/", h.Users.UpdateUser)
						r.With(auth.RequirePermission(models.PermissionDeleteUsers)).Delete("/", h.Users.DeleteUser)
						r.With(auth.RequirePermission(models.PermissionUpdateUsers)).Post("/profile-picture", h.Profile.UploadUserPicture)
					})
				})
			})
		})
	})
}
