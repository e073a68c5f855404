// Package handler provides HTTP and WebSocket handlers for the API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snowhub/chat-service/internal/middleware"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/internal/service"
	"github.com/snowhub/chat-service/pkg/logger"
)

// ChatHandler handles thread endpoints.
type ChatHandler struct {
	threads    *service.ThreadService
	dispatcher *service.Dispatcher
	logger     *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(threads *service.ThreadService, dispatcher *service.Dispatcher, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		threads:    threads,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// Open handles POST /api/chat
func (h *ChatHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	var req model.OpenThreadRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, "open chat", err)
		return
	}

	view, created, err := h.threads.Open(ctx, user, req.ParticipantID)
	if err != nil {
		respondError(w, r, h.logger, "open chat", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, model.ThreadResponse{Chat: *view})
}

// List handles GET /api/chat
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", service.DefaultThreadPageSize)

	resp, err := h.threads.List(ctx, middleware.GetUser(ctx), page, limit)
	if err != nil {
		respondError(w, r, h.logger, "list chats", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/chat/{id}
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(chatID); err != nil {
		respondError(w, r, h.logger, "get chat", err)
		return
	}

	view, err := h.threads.Get(ctx, middleware.GetUser(ctx), chatID)
	if err != nil {
		respondError(w, r, h.logger, "get chat", err)
		return
	}

	writeJSON(w, http.StatusOK, model.ThreadResponse{Chat: *view})
}

// MarkRead handles PUT /api/chat/{id}/read
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(chatID); err != nil {
		respondError(w, r, h.logger, "mark read", err)
		return
	}

	n, err := h.dispatcher.MarkRead(ctx, chatID, middleware.GetUser(ctx))
	if err != nil {
		respondError(w, r, h.logger, "mark read", err)
		return
	}

	writeJSON(w, http.StatusOK, model.MarkReadResponse{ChatID: chatID, Marked: n})
}
