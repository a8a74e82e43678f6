package middleware

import (
	"context"
	"net/http"

	"github.com/betweenus/backend/internal/logging"
)

// ServerTokenHeader carries the capability token other services present when
// calling privileged endpoints.
const ServerTokenHeader = "X-Server-Token"

// CapabilityValidator checks whether a presented capability token is valid.
type CapabilityValidator interface {
	IsValid(ctx context.Context, token string) (bool, error)
}

// RequireCapability rejects requests that do not carry a valid server token.
func RequireCapability(validator CapabilityValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			token := r.Header.Get(ServerTokenHeader)
			ok, err := validator.IsValid(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Error("capability check failed", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
