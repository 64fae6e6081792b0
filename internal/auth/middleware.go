package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// RequireBearer wraps an HTTP handler with JWT bearer-token authentication.
// When svc has no secret configured, requests pass through unauthenticated
// (development mode); otherwise a missing or invalid token is rejected.
func RequireBearer(svc *JWTService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				if errors.Is(validate(svc, ""), ErrAuthDisabled) {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, ErrMissingCredentials.Error(), http.StatusUnauthorized)
				return
			}

			user, err := svc.Validate(token)
			if err != nil {
				if logger != nil {
					logger.Warn("jwt validation failed", "error", err)
				}
				if errors.Is(err, ErrAuthDisabled) {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, ErrInvalidToken.Error(), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func validate(svc *JWTService, token string) error {
	_, err := svc.Validate(token)
	return err
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
