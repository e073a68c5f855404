// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/auth"
	"github.com/snowhub/chat-service/internal/model"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserKey is the context key for the authenticated user.
	UserKey ContextKey = "user"
)

// Authenticator resolves a bearer credential to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// TokenSource extracts the credential from a request.
type TokenSource func(r *http.Request) (string, error)

// HeaderToken reads the credential from the Authorization header.
func HeaderToken(r *http.Request) (string, error) {
	return auth.BearerToken(r.Header.Get("Authorization"))
}

// HeaderOrQueryToken also accepts a token query parameter, for clients that
// cannot set headers on a WebSocket handshake.
func HeaderOrQueryToken(r *http.Request) (string, error) {
	if r.Header.Get("Authorization") != "" {
		return HeaderToken(r)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", apperr.Unauthorized("authentication required")
}

// Auth creates authentication middleware. The credential is validated on
// every request and the resolved user is stored in the request context.
func Auth(authn Authenticator, source TokenSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := source(r)
			if err != nil {
				writeError(w, apperr.HTTPStatus(err), apperr.Message(err))
				return
			}

			user, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, apperr.HTTPStatus(err), apperr.Message(err))
				return
			}

			noteUser(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser gets the authenticated user from context.
func GetUser(ctx context.Context) *model.User {
	if v, ok := ctx.Value(UserKey).(*model.User); ok {
		return v
	}
	return nil
}

// GetUserID gets the authenticated user ID from context.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.ID
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
