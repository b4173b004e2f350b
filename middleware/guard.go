package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/jwt"
)

type claimsContextKey struct{}

// IdentityFunc extracts the rate limit identity from a request. An empty
// return is treated as anonymous.
type IdentityFunc func(*http.Request) string

// ClaimsFromContext returns the session claims stored by [Authenticate].
func ClaimsFromContext(ctx context.Context) (*jwt.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.SessionClaims)
	return claims, ok
}

// IdentityFromClaims is the default [IdentityFunc]: the subject of the
// authenticated session, or anonymous.
func IdentityFromClaims(r *http.Request) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return claims.Subject
	}
	return ""
}

// Authenticate rejects requests without a valid bearer session token and
// stores the token's claims in the request context.
func Authenticate(tokens *jwt.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
				return
			}

			claims, err := tokens.Parse(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "session token invalid or expired", nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit counts each request against the engine rule for operation.
// Denied requests get 429 with Retry-After. A nil identity func uses
// [IdentityFromClaims].
func RateLimit(engine *goGuard.Engine, operation string, identity IdentityFunc) func(http.Handler) http.Handler {
	if identity == nil {
		identity = IdentityFromClaims
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := engine.Allow(r.Context(), identity(r), operation)
			if err != nil {
				writeEngineError(w, err)
				return
			}

			if !decision.Anonymous {
				w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			}
			if !decision.Allowed {
				secs := decision.SecondsRemaining()
				w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
				WriteError(w, http.StatusTooManyRequests, "rate_limited",
					fmt.Sprintf("You have reached the request limit. Please wait %d seconds.", secs),
					map[string]any{"seconds_remaining": secs})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, goGuard.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, goGuard.ErrStoreUnavailable), errors.Is(err, goGuard.ErrVerifierUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	switch status {
	case http.StatusBadRequest:
		WriteError(w, status, "invalid_input", "identity is not valid", nil)
	case http.StatusServiceUnavailable:
		WriteError(w, status, "unavailable", "service temporarily unavailable", nil)
	default:
		WriteError(w, status, "internal_error", "internal error", nil)
	}
}

// WriteJSON writes v as a JSON response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": code, "message": msg} plus any extra fields.
func WriteError(w http.ResponseWriter, status int, code, msg string, extra map[string]any) {
	body := map[string]any{"error": code, "message": msg}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(w, status, body)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
