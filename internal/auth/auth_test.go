package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/mocks"
	"github.com/snowhub/chat-service/internal/model"
)

const testSecret = "test-secret"

func TestAuthenticator_Authenticate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := mocks.NewMockDirectory(ctrl)
	authn := NewAuthenticator(testSecret, dir)
	ctx := context.Background()

	t.Run("should resolve a valid token to its user", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(testSecret, "u-1", time.Hour)
		req.NoError(err)

		dir.EXPECT().Lookup(gomock.Any(), "u-1").
			Return(&model.User{ID: "u-1", Username: "alice"}, nil).
			Times(1)

		user, err := authn.Authenticate(ctx, token)
		req.NoError(err)
		req.Equal("alice", user.Username)
	})

	t.Run("should accept tokens carrying only the subject", func(t *testing.T) {
		req := require.New(t)
		claims := jwt.RegisteredClaims{Subject: "u-2", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		req.NoError(err)

		dir.EXPECT().Lookup(gomock.Any(), "u-2").Return(&model.User{ID: "u-2"}, nil).Times(1)

		user, err := authn.Authenticate(ctx, token)
		req.NoError(err)
		req.Equal("u-2", user.ID)
	})

	t.Run("should reject an empty token without a lookup", func(t *testing.T) {
		req := require.New(t)
		dir.EXPECT().Lookup(gomock.Any(), gomock.Any()).Times(0)

		_, err := authn.Authenticate(ctx, "  ")
		req.True(apperr.Is(err, apperr.KindUnauthorized))
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken("other-secret", "u-1", time.Hour)
		req.NoError(err)

		_, err = authn.Authenticate(ctx, token)
		req.True(apperr.Is(err, apperr.KindUnauthorized))
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(testSecret, "u-1", -time.Minute)
		req.NoError(err)

		_, err = authn.Authenticate(ctx, token)
		req.True(apperr.Is(err, apperr.KindUnauthorized))
	})

	t.Run("should reject tokens for unknown users", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(testSecret, "ghost", time.Hour)
		req.NoError(err)

		dir.EXPECT().Lookup(gomock.Any(), "ghost").Return(nil, apperr.NotFound("user not found")).Times(1)

		_, err = authn.Authenticate(ctx, token)
		req.True(apperr.Is(err, apperr.KindUnauthorized))
	})

	t.Run("should surface directory outages as unavailable", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(testSecret, "u-1", time.Hour)
		req.NoError(err)

		dir.EXPECT().Lookup(gomock.Any(), "u-1").Return(nil, errors.New("connection refused")).Times(1)

		_, err = authn.Authenticate(ctx, token)
		req.True(apperr.Is(err, apperr.KindUnavailable))
	})
}

func TestBearerToken(t *testing.T) {
	req := require.New(t)

	token, err := BearerToken("Bearer abc.def")
	req.NoError(err)
	req.Equal("abc.def", token)

	token, err = BearerToken("bearer xyz")
	req.NoError(err)
	req.Equal("xyz", token)

	_, err = BearerToken("")
	req.True(apperr.Is(err, apperr.KindUnauthorized))

	_, err = BearerToken("Basic abc")
	req.True(apperr.Is(err, apperr.KindUnauthorized))
}

func TestStaticDirectory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	strict := NewStaticDirectory(false, &model.User{ID: "a", Username: "alice"})
	u, err := strict.Lookup(ctx, "a")
	req.NoError(err)
	req.Equal("alice", u.Username)

	_, err = strict.Lookup(ctx, "b")
	req.True(apperr.Is(err, apperr.KindNotFound))

	users, err := strict.LookupMany(ctx, []string{"a", "b"})
	req.NoError(err)
	req.Len(users, 1)

	open := NewStaticDirectory(true)
	u, err = open.Lookup(ctx, "carol")
	req.NoError(err)
	req.Equal("carol", u.Username)
}
