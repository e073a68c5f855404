package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/auth"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/pkg/logger"
)

const secret = "middleware-secret"

func newAuthenticator() *auth.Authenticator {
	dir := auth.NewStaticDirectory(false, &model.User{ID: "alice", Username: "Alice"})
	return auth.NewAuthenticator(secret, dir)
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestAuth(t *testing.T) {
	var seen *model.User
	h := Auth(newAuthenticator(), HeaderToken)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("should attach the user for a valid token", func(t *testing.T) {
		req := require.New(t)
		token, err := auth.GenerateToken(secret, "alice", time.Hour)
		req.NoError(err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		req.Equal(http.StatusNoContent, rec.Code)
		req.Equal("alice", seen.ID)
		req.Equal("Alice", seen.Username)
	})

	t.Run("should return 401 without a header", func(t *testing.T) {
		req := require.New(t)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		req.Equal(http.StatusUnauthorized, rec.Code)
		req.Equal("missing authorization header", errorBody(t, rec))
	})

	t.Run("should return 401 for an unknown user", func(t *testing.T) {
		req := require.New(t)
		token, err := auth.GenerateToken(secret, "mallory", time.Hour)
		req.NoError(err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		req.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func TestLogging_SetsCorrelationIDAndRecordsUser(t *testing.T) {
	req := require.New(t)

	var correlationID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID = GetCorrelationID(r.Context())
		noteUser(r.Context(), "alice")
		w.WriteHeader(http.StatusCreated)
	})
	core, logs := observer.New(zapcore.InfoLevel)
	h := Logging(&logger.Logger{Logger: zap.New(core)})(inner)

	r := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	r.Header.Set("X-Correlation-ID", "corr-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	req.Equal(http.StatusCreated, rec.Code)
	req.Equal("corr-1", correlationID)
	req.Equal("corr-1", rec.Header().Get("X-Correlation-ID"))

	entries := logs.FilterMessage("request completed").All()
	req.Len(entries, 1)
	fields := entries[0].ContextMap()
	req.Equal("corr-1", fields["correlation_id"])
	req.Equal("alice", fields["user_id"])
	req.EqualValues(http.StatusCreated, fields["status"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	req.NotEmpty(rec.Header().Get("X-Correlation-ID"))
}

func TestUserRateLimit(t *testing.T) {
	req := require.New(t)
	h := UserRateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(userID string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(WithUser(r.Context(), &model.User{ID: userID}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	req.Equal(http.StatusOK, call("alice"))
	req.Equal(http.StatusOK, call("alice"))
	req.Equal(http.StatusTooManyRequests, call("alice"))
	req.Equal(http.StatusOK, call("bob"))
}

func TestValidate(t *testing.T) {
	req := require.New(t)

	err := Validate(&model.OpenThreadRequest{})
	req.True(apperr.Is(err, apperr.KindValidation))
	req.Equal("participantId is required", apperr.Message(err))

	err = Validate(&model.SendMessageRequest{Message: "hi", Type: "video"})
	req.True(apperr.Is(err, apperr.KindValidation))
	req.Contains(apperr.Message(err), "type must be one of")

	req.NoError(Validate(&model.SendMessageRequest{Message: "hi", Type: model.MessageKindImage}))
}

func TestDecodeJSON(t *testing.T) {
	req := require.New(t)

	var body model.OpenThreadRequest
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"participantId":"bob"}`))
	req.NoError(DecodeJSON(r, &body))
	req.Equal("bob", body.ParticipantID)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	req.True(apperr.Is(DecodeJSON(r, &body), apperr.KindValidation))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := DecodeJSON(r, &body)
	req.Equal("request body is required", apperr.Message(err))

	big := `{"participantId":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	req.True(apperr.Is(DecodeJSON(r, &body), apperr.KindValidation))
}

func TestValidateThreadID(t *testing.T) {
	req := require.New(t)
	req.NoError(ValidateThreadID("0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"))
	req.True(apperr.Is(ValidateThreadID("not-a-uuid"), apperr.KindNotFound))
}

func TestHeaderOrQueryToken(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	token, err := HeaderOrQueryToken(r)
	req.NoError(err)
	req.Equal("abc", token)

	r.Header.Set("Authorization", "Bearer xyz")
	token, err = HeaderOrQueryToken(r)
	req.NoError(err)
	req.Equal("xyz", token)

	_, err = HeaderOrQueryToken(httptest.NewRequest(http.MethodGet, "/ws", nil))
	req.True(apperr.Is(err, apperr.KindUnauthorized))
}

func TestGetUser_Empty(t *testing.T) {
	req := require.New(t)
	req.Nil(GetUser(context.Background()))
	req.Empty(GetUserID(context.Background()))
}
