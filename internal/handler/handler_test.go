package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/snowhub/chat-service/internal/auth"
	"github.com/snowhub/chat-service/internal/middleware"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/internal/realtime"
	"github.com/snowhub/chat-service/internal/service"
	"github.com/snowhub/chat-service/internal/store"
	"github.com/snowhub/chat-service/pkg/logger"
)

const testSecret = "handler-secret"

var (
	alice = &model.User{ID: "alice", Username: "Alice"}
	bob   = &model.User{ID: "bob", Username: "Bob"}
	eve   = &model.User{ID: "eve", Username: "Eve"}
)

type harness struct {
	srv      *httptest.Server
	registry *realtime.Registry
	store    *store.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := logger.NewNop()
	mem := store.NewMemory()
	dir := auth.NewStaticDirectory(false, alice, bob, eve)
	authn := auth.NewAuthenticator(testSecret, dir)

	registry := realtime.NewRegistry(service.NewMemberships(mem, time.Second), nil, log)
	threads := service.NewThreadService(mem, mem, dir, registry, time.Second, log)
	dispatcher := service.NewDispatcher(mem, mem, registry, time.Second, log)

	chats := NewChatHandler(threads, dispatcher, log)
	messages := NewMessageHandler(threads, dispatcher, log)
	live := NewLiveHandler(authn, threads, dispatcher, registry,
		realtime.NewPresence(registry, log), realtime.NewTyping(registry),
		LiveConfig{SendBuffer: 64, EventsPerSecond: 1000, EventsBurst: 1000}, log)

	r := chi.NewRouter()
	r.Get("/ws", live.Serve)
	r.Route("/api/chat", func(r chi.Router) {
		r.Use(middleware.Auth(authn, middleware.HeaderToken))
		r.Post("/", chats.Open)
		r.Get("/", chats.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", chats.Get)
			r.Put("/read", chats.MarkRead)
			r.Get("/messages", messages.List)
			r.Post("/messages", messages.Send)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		registry.Close()
		srv.Close()
	})
	return &harness{srv: srv, registry: registry, store: mem}
}

func token(t *testing.T, user *model.User) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, user.ID, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a request as user (anonymous when nil) and decodes the response
// into out when it is non-nil.
func (h *harness) do(t *testing.T, method, path string, user *model.User, body any, out any) int {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	r, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(t, err)
	r.Header.Set("Content-Type", "application/json")
	if user != nil {
		r.Header.Set("Authorization", "Bearer "+token(t, user))
	}

	resp, err := h.srv.Client().Do(r)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *harness) open(t *testing.T, user, other *model.User) string {
	t.Helper()
	var resp model.ThreadResponse
	status := h.do(t, http.MethodPost, "/api/chat", user, model.OpenThreadRequest{ParticipantID: other.ID}, &resp)
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, status)
	return resp.Chat.ID
}

func TestChatHandler_Open(t *testing.T) {
	h := newHarness(t)

	t.Run("should create then return the existing chat", func(t *testing.T) {
		req := require.New(t)

		var first model.ThreadResponse
		req.Equal(http.StatusCreated, h.do(t, http.MethodPost, "/api/chat", alice, model.OpenThreadRequest{ParticipantID: bob.ID}, &first))
		req.Equal(bob.ID, first.Chat.Participant.ID)
		req.Equal("Bob", first.Chat.Participant.Username)
		req.Len(first.Chat.Participants, 2)

		var second model.ThreadResponse
		req.Equal(http.StatusOK, h.do(t, http.MethodPost, "/api/chat", bob, model.OpenThreadRequest{ParticipantID: alice.ID}, &second))
		req.Equal(first.Chat.ID, second.Chat.ID)
		req.Equal(alice.ID, second.Chat.Participant.ID)
	})

	t.Run("should reject a chat with yourself", func(t *testing.T) {
		req := require.New(t)
		var body map[string]string
		req.Equal(http.StatusBadRequest, h.do(t, http.MethodPost, "/api/chat", alice, model.OpenThreadRequest{ParticipantID: alice.ID}, &body))
		req.Equal("cannot create chat with yourself", body["error"])
	})

	t.Run("should return 404 for an unknown participant", func(t *testing.T) {
		req := require.New(t)
		req.Equal(http.StatusNotFound, h.do(t, http.MethodPost, "/api/chat", alice, model.OpenThreadRequest{ParticipantID: "mallory"}, nil))
	})

	t.Run("should return 400 without a participant", func(t *testing.T) {
		req := require.New(t)
		var body map[string]string
		req.Equal(http.StatusBadRequest, h.do(t, http.MethodPost, "/api/chat", alice, map[string]string{}, &body))
		req.Equal("participantId is required", body["error"])
	})

	t.Run("should return 401 without credentials", func(t *testing.T) {
		req := require.New(t)
		req.Equal(http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/chat", nil, model.OpenThreadRequest{ParticipantID: bob.ID}, nil))
	})
}

func TestChatHandler_GetAndList(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	withBob := h.open(t, alice, bob)
	withEve := h.open(t, eve, alice)

	var got model.ThreadResponse
	req.Equal(http.StatusOK, h.do(t, http.MethodGet, "/api/chat/"+withBob, bob, nil, &got))
	req.Equal(withBob, got.Chat.ID)
	req.Equal(alice.ID, got.Chat.Participant.ID)

	req.Equal(http.StatusForbidden, h.do(t, http.MethodGet, "/api/chat/"+withBob, eve, nil, nil))
	req.Equal(http.StatusNotFound, h.do(t, http.MethodGet, "/api/chat/not-a-uuid", alice, nil, nil))

	var list model.ListThreadsResponse
	req.Equal(http.StatusOK, h.do(t, http.MethodGet, "/api/chat?page=1&limit=1", alice, nil, &list))
	req.Len(list.Chats, 1)
	req.Equal(model.Pagination{Current: 1, Pages: 2, Total: 2, Limit: 1}, list.Pagination)

	req.Equal(http.StatusOK, h.do(t, http.MethodGet, "/api/chat", alice, nil, &list))
	ids := []string{list.Chats[0].ID, list.Chats[1].ID}
	req.ElementsMatch([]string{withBob, withEve}, ids)

	var body map[string]string
	req.Equal(http.StatusBadRequest, h.do(t, http.MethodGet, "/api/chat?page=922337203685477580&limit=20", alice, nil, &body))
	req.Equal("page is out of range", body["error"])
}

func TestMessageHandler_SendListRead(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	chatID := h.open(t, alice, bob)
	base := "/api/chat/" + chatID

	for _, text := range []string{"hi", "are you there"} {
		var sent model.SendMessageResponse
		req.Equal(http.StatusCreated, h.do(t, http.MethodPost, base+"/messages", alice, model.SendMessageRequest{Message: text}, &sent))
		req.Equal(chatID, sent.ChatID)
		req.Equal(text, sent.Message.Message)
		req.Equal(model.MessageKindText, sent.Message.Type)
		req.Equal(alice.ID, sent.Message.Sender.ID)
	}

	var page model.ListMessagesResponse
	req.Equal(http.StatusOK, h.do(t, http.MethodGet, base+"/messages", bob, nil, &page))
	req.Len(page.Messages, 2)
	req.Equal("hi", page.Messages[0].Message)
	req.Equal("are you there", page.Messages[1].Message)
	req.Equal(int64(2), page.Pagination.Total)
	req.False(page.Messages[0].IsRead)

	var chat model.ThreadResponse
	req.Equal(http.StatusOK, h.do(t, http.MethodGet, base, bob, nil, &chat))
	req.Equal(2, chat.Chat.UnreadCount)
	req.Equal("are you there", chat.Chat.LastMessage.Text)

	var read model.MarkReadResponse
	req.Equal(http.StatusOK, h.do(t, http.MethodPut, base+"/read", bob, nil, &read))
	req.Equal(model.MarkReadResponse{ChatID: chatID, Marked: 2}, read)

	req.Equal(http.StatusOK, h.do(t, http.MethodGet, base, bob, nil, &chat))
	req.Equal(0, chat.Chat.UnreadCount)

	req.Equal(http.StatusOK, h.do(t, http.MethodPut, base+"/read", bob, nil, &read))
	req.Equal(int64(0), read.Marked)

	t.Run("should reject bad input", func(t *testing.T) {
		req := require.New(t)
		req.Equal(http.StatusBadRequest, h.do(t, http.MethodGet, base+"/messages?before=yesterday", bob, nil, nil))
		req.Equal(http.StatusBadRequest, h.do(t, http.MethodPost, base+"/messages", alice, model.SendMessageRequest{Message: ""}, nil))
		req.Equal(http.StatusBadRequest, h.do(t, http.MethodPost, base+"/messages", alice, model.SendMessageRequest{Message: "x", Type: "video"}, nil))
	})

	t.Run("should refuse non-participants", func(t *testing.T) {
		req := require.New(t)
		req.Equal(http.StatusForbidden, h.do(t, http.MethodPost, base+"/messages", eve, model.SendMessageRequest{Message: "hey"}, nil))
		req.Equal(http.StatusForbidden, h.do(t, http.MethodPut, base+"/read", eve, nil, nil))
		req.Equal(http.StatusForbidden, h.do(t, http.MethodGet, base+"/messages", eve, nil, nil))
	})
}
