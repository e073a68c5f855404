package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/middleware"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/internal/realtime"
	"github.com/snowhub/chat-service/internal/service"
	"github.com/snowhub/chat-service/pkg/logger"
	"github.com/snowhub/chat-service/pkg/metrics"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxFrameSize = 16 * 1024
)

// LiveConfig tunes the live channel.
type LiveConfig struct {
	SendBuffer      int
	EventsPerSecond float64
	EventsBurst     int
	AllowedOrigins  []string
}

// LiveHandler serves the WebSocket live channel.
type LiveHandler struct {
	authn      middleware.Authenticator
	threads    *service.ThreadService
	dispatcher *service.Dispatcher
	registry   *realtime.Registry
	presence   *realtime.Presence
	typing     *realtime.Typing
	cfg        LiveConfig
	upgrader   websocket.Upgrader
	logger     *logger.Logger
}

// NewLiveHandler creates a new live channel handler.
func NewLiveHandler(
	authn middleware.Authenticator,
	threads *service.ThreadService,
	dispatcher *service.Dispatcher,
	registry *realtime.Registry,
	presence *realtime.Presence,
	typing *realtime.Typing,
	cfg LiveConfig,
	log *logger.Logger,
) *LiveHandler {
	h := &LiveHandler{
		authn:      authn,
		threads:    threads,
		dispatcher: dispatcher,
		registry:   registry,
		presence:   presence,
		typing:     typing,
		cfg:        cfg,
		logger:     log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *LiveHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin)
}

// Serve handles GET /ws. The credential is checked once, before the upgrade.
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	token, err := middleware.HeaderOrQueryToken(r)
	if err != nil {
		respondError(w, r, h.logger, "live connect", err)
		return
	}
	user, err := h.authn.Authenticate(r.Context(), token)
	if err != nil {
		respondError(w, r, h.logger, "live connect", err)
		return
	}

	session := realtime.NewSession(user, h.cfg.SendBuffer)
	first, err := h.registry.Register(r.Context(), session)
	if err != nil {
		if errors.Is(err, realtime.ErrRegistryClosed) {
			err = apperr.Unavailable("server shutting down", err)
		}
		respondError(w, r, h.logger, "live connect", err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.registry.Unregister(session)
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	log := h.logger.WithSession(session.ID, user.ID)
	log.Info("live session opened")
	h.presence.Connected(ctx, user, first)

	go h.writePump(conn, session, log)
	h.readPump(ctx, conn, session, log)

	last := h.registry.Unregister(session)
	h.presence.Disconnected(ctx, user, last)
	log.Info("live session closed", zap.Bool("last", last))
}

// readPump dispatches inbound frames until the connection fails.
func (h *LiveHandler) readPump(ctx context.Context, conn *websocket.Conn, s *realtime.Session, log *logger.Logger) {
	defer conn.Close()

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(h.cfg.EventsPerSecond), h.cfg.EventsBurst)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("live read failed", zap.Error(err))
			}
			return
		}

		var frame model.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			metrics.LiveEventsTotal.WithLabelValues("invalid", "rejected").Inc()
			h.sendError(s, apperr.Validation("invalid frame"))
			continue
		}
		if !limiter.Allow() {
			metrics.LiveEventsTotal.WithLabelValues(eventLabel(frame.Event), "throttled").Inc()
			h.sendError(s, apperr.Validation("rate limit exceeded"))
			continue
		}

		if err := h.dispatch(ctx, s, frame); err != nil {
			metrics.LiveEventsTotal.WithLabelValues(eventLabel(frame.Event), "error").Inc()
			if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
				log.Error("live event failed", zap.String("event", string(frame.Event)), zap.Error(err))
			}
			h.sendError(s, err)
			continue
		}
		metrics.LiveEventsTotal.WithLabelValues(eventLabel(frame.Event), "ok").Inc()
	}
}

// writePump writes one frame per WebSocket message and keeps the peer alive
// with pings. It returns when the session's queue is closed.
func (h *LiveHandler) writePump(conn *websocket.Conn, s *realtime.Session, log *logger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("live write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("live ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *LiveHandler) dispatch(ctx context.Context, s *realtime.Session, frame model.Frame) error {
	switch frame.Event {
	case model.EventJoinChat:
		chatID, err := decodeChatID(frame.Data)
		if err != nil {
			return err
		}
		if err := h.threads.Authorize(ctx, s.User, chatID); err != nil {
			return err
		}
		h.registry.Join(s, chatID)
		return nil

	case model.EventLeaveChat:
		chatID, err := decodeChatID(frame.Data)
		if err != nil {
			return err
		}
		h.registry.Leave(s, chatID)
		return nil

	case model.EventSendMessage:
		var cmd model.SendMessageCommand
		if err := decodeCommand(frame.Data, &cmd); err != nil {
			return err
		}
		_, err := h.dispatcher.SendMessage(ctx, cmd.ChatID, s.User, service.SendInput{
			Body:    cmd.Message,
			Kind:    cmd.Type,
			FileURL: cmd.FileURL,
		}, service.IngressLive)
		return err

	case model.EventTyping:
		var cmd model.TypingCommand
		if err := decodeCommand(frame.Data, &cmd); err != nil {
			return err
		}
		return h.typing.Signal(ctx, s, cmd)

	case model.EventMarkRead:
		var cmd model.MarkReadCommand
		if err := decodeCommand(frame.Data, &cmd); err != nil {
			return err
		}
		_, err := h.dispatcher.MarkRead(ctx, cmd.ChatID, s.User)
		return err

	case model.EventUserOnline:
		h.presence.Announce(ctx, s.User)
		return nil

	default:
		return apperr.Validation("unknown event: " + string(frame.Event))
	}
}

func (h *LiveHandler) sendError(s *realtime.Session, err error) {
	h.registry.Send(s, model.Event{
		Type: model.EventError,
		Data: model.ErrorEvent{Message: apperr.Message(err)},
	})
}

// decodeChatID accepts either a bare thread id or {"chatId": id}.
func decodeChatID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var cmd model.MarkReadCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return "", apperr.Validation("chatId is required")
		}
		id = cmd.ChatID
	}
	if id == "" {
		return "", apperr.Validation("chatId is required")
	}
	return id, nil
}

func decodeCommand(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperr.Validation("data is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Validation("invalid event data")
	}
	return middleware.Validate(v)
}

// eventLabel keeps metric cardinality bounded.
func eventLabel(e model.EventType) string {
	switch e {
	case model.EventJoinChat, model.EventLeaveChat, model.EventSendMessage,
		model.EventTyping, model.EventMarkRead, model.EventUserOnline:
		return string(e)
	default:
		return "unknown"
	}
}
