//go:generate go run go.uber.org/mock/mockgen -source=auth.go -destination=../mocks/mock_directory.go -package=mocks

// Package auth verifies bearer credentials and resolves them to identities.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/model"
)

// Directory resolves user ids to display attributes.
type Directory interface {
	Lookup(ctx context.Context, id string) (*model.User, error)
	LookupMany(ctx context.Context, ids []string) (map[string]*model.User, error)
}

// Claims are the JWT claims issued by the account service. Older tokens carry
// the user id in "id"; newer ones use the registered subject.
type Claims struct {
	jwt.RegisteredClaims
	LegacyID string `json:"id,omitempty"`
}

// UserID returns the identity the claims refer to.
func (c *Claims) UserID() string {
	if c.LegacyID != "" {
		return c.LegacyID
	}
	return c.Subject
}

// Authenticator turns a bearer credential into an identity.
type Authenticator struct {
	secret    []byte
	directory Directory
}

// NewAuthenticator creates an authenticator verifying HMAC-signed tokens.
func NewAuthenticator(secret string, directory Directory) *Authenticator {
	return &Authenticator{secret: []byte(secret), directory: directory}
}

// Authenticate verifies token and looks up the identity it names.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.Unauthorized("authentication required")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperr.Unauthorized("invalid token")
	}

	userID := claims.UserID()
	if userID == "" {
		return nil, apperr.Unauthorized("invalid token")
	}

	user, err := a.directory.Lookup(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("user not found")
		}
		if apperr.Is(err, apperr.KindUnavailable) {
			return nil, err
		}
		return nil, apperr.Unavailable("identity lookup failed", err)
	}
	return user, nil
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperr.Unauthorized("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", apperr.Unauthorized("invalid authorization header format")
	}
	return parts[1], nil
}

// GenerateToken signs a token naming userID. It is used by tests and local
// tooling; production tokens are issued by the account service.
func GenerateToken(secret, userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		LegacyID: userID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
