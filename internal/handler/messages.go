package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/middleware"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/internal/service"
	"github.com/snowhub/chat-service/internal/store"
	"github.com/snowhub/chat-service/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	threads    *service.ThreadService
	dispatcher *service.Dispatcher
	logger     *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(threads *service.ThreadService, dispatcher *service.Dispatcher, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		threads:    threads,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// List handles GET /api/chat/{id}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(chatID); err != nil {
		respondError(w, r, h.logger, "list messages", err)
		return
	}

	var before *time.Time
	if b := r.URL.Query().Get("before"); b != "" {
		parsed, err := time.Parse(time.RFC3339Nano, b)
		if err != nil {
			respondError(w, r, h.logger, "list messages", apperr.Validation("before must be an RFC 3339 timestamp"))
			return
		}
		before = &parsed
	}
	limit := queryInt(r, "limit", store.DefaultPageSize)

	resp, err := h.threads.Messages(ctx, middleware.GetUser(ctx), chatID, before, limit)
	if err != nil {
		respondError(w, r, h.logger, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/chat/{id}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(chatID); err != nil {
		respondError(w, r, h.logger, "send message", err)
		return
	}

	var req model.SendMessageRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, "send message", err)
		return
	}

	view, err := h.dispatcher.SendMessage(ctx, chatID, middleware.GetUser(ctx), service.SendInput{
		Body:    req.Message,
		Kind:    req.Type,
		FileURL: req.FileURL,
	}, service.IngressREST)
	if err != nil {
		respondError(w, r, h.logger, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, model.SendMessageResponse{Message: *view, ChatID: chatID})
}
