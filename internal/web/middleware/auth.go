package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/constants"
)

type contextKey string

const loginContextKey contextKey = "login"

// TokenDecoder validates a signed token of the expected type.
type TokenDecoder interface {
	Decode(token, expectedType string) (*auth.Claims, error)
}

// RequireAuth is middleware that requires a valid bearer access token.
// The caller login is stored in the request context.
func RequireAuth(decoder TokenDecoder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "not authenticated")
				return
			}

			claims, err := decoder.Decode(token, constants.AccessTokenType)
			if err != nil {
				log.Printf("auth: rejected access token for %s %s: %v", r.Method, r.URL.Path, err)
				unauthorized(w, "could not validate credentials")
				return
			}

			ctx := SetLoginInContext(r.Context(), claims.Login)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, constants.TokenTypeBearer) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}` + "\n"))
}

// GetLoginFromContext returns the authenticated client login, or "" if none.
func GetLoginFromContext(ctx context.Context) string {
	login, _ := ctx.Value(loginContextKey).(string)
	return login
}

// SetLoginInContext adds a client login to the context.
// This is primarily for testing - use RequireAuth middleware in production.
func SetLoginInContext(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, loginContextKey, login)
}
