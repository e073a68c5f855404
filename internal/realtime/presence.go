package realtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/pkg/logger"
)

// Presence announces identities going online and offline. An identity is
// online from its first session until its last one closes.
type Presence struct {
	registry *Registry
	logger   *logger.Logger
}

// NewPresence creates a presence broadcaster over registry.
func NewPresence(registry *Registry, log *logger.Logger) *Presence {
	return &Presence{registry: registry, logger: log}
}

// Connected announces user as online when first is true.
func (p *Presence) Connected(ctx context.Context, user *model.User, first bool) {
	if first {
		p.announce(ctx, user.ID, model.StatusOnline)
	}
}

// Disconnected announces user as offline when last is true.
func (p *Presence) Disconnected(ctx context.Context, user *model.User, last bool) {
	if last {
		p.announce(ctx, user.ID, model.StatusOffline)
	}
}

// Announce re-sends the online status of user. Clients send user_online after
// reconnecting; repeating it is harmless.
func (p *Presence) Announce(ctx context.Context, user *model.User) {
	p.announce(ctx, user.ID, model.StatusOnline)
}

func (p *Presence) announce(ctx context.Context, userID, status string) {
	p.logger.Debug("presence changed", zap.String("user_id", userID), zap.String("status", status))
	p.registry.EmitAll(ctx, model.Event{
		Type: model.EventUserStatus,
		Data: model.UserStatusEvent{UserID: userID, Status: status},
	}, userID)
}

// Typing relays typing indicators between the sessions of a thread. Nothing
// is persisted.
type Typing struct {
	registry *Registry
}

// NewTyping creates a typing relay over registry.
func NewTyping(registry *Registry) *Typing {
	return &Typing{registry: registry}
}

// Signal forwards a typing indicator from s to the other members of the
// thread. The session must have joined the thread.
func (t *Typing) Signal(ctx context.Context, s *Session, cmd model.TypingCommand) error {
	if !t.registry.InRoom(s, cmd.ChatID) {
		return apperr.Forbidden("join the chat before sending typing events")
	}
	t.registry.EmitToThread(ctx, cmd.ChatID, model.Event{
		Type: model.EventUserTyping,
		Data: model.UserTypingEvent{
			ChatID:   cmd.ChatID,
			UserID:   s.User.ID,
			Username: s.User.Username,
			IsTyping: cmd.IsTyping,
		},
	}, s.User.ID)
	return nil
}
