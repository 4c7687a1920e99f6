package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// Alerter is notified of unhandled failures
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// Recoverer turns a panic into a SERVER_ERROR response and raises a system
// alert. The alert is sent in the background with its own deadline.
func Recoverer(logger *slog.Logger, alerter Alerter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := string(debug.Stack())
				requestID := middleware.GetReqID(r.Context())
				logger.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", requestID),
					slog.String("stack", stack))

				if alerter != nil {
					subject := fmt.Sprintf("Unhandled error on %s %s", r.Method, r.URL.Path)
					body := fmt.Sprintf("request_id: %s\npanic: %v\n\n%s", requestID, rec, stack)
					go func() {
						ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
						defer cancel()
						if err := alerter.Alert(ctx, subject, body); err != nil {
							logger.Error("failed to send system alert", slog.Any("error", err))
						}
					}()
				}

				pkghttp.WriteInternalError(w, "Server Error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
