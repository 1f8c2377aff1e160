package http

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
)

// Middleware defines the standard signature for an HTTP middleware.
type Middleware func(http.Handler) http.Handler

// Chain combines multiple middlewares into a single handler.
// The middlewares are applied in the order they are passed.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// contextKey is a custom type to avoid key collisions in context.
type contextKey string

const (
	callerKey contextKey = "caller"
)

// paramsMiddleware handles request logging, the 'verbose' query parameter and
// the X-Caller-ID header carrying the verified caller identity.
func paramsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Info("incoming request", "method", r.Method, "url", r.URL.String())
		// Handle 'verbose' for request-scoped verbose logging.
		if r.URL.Query().Get("verbose") == "true" {
			originalLevel := log.GetLevel()
			log.SetLevel(log.DebugLevel)
			defer log.SetLevel(originalLevel)
		}

		// The identity is assumed to be verified upstream (gateway or auth
		// proxy); this service only consumes it.
		ctx := context.WithValue(r.Context(), callerKey, r.Header.Get("X-Caller-ID"))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerFromContext is a helper to safely retrieve the caller id from the request context.
func callerFromContext(r *http.Request) string {
	caller, ok := r.Context().Value(callerKey).(string)
	if !ok {
		return ""
	}
	return caller
}
