package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/pkg/logger"
	"github.com/snowhub/chat-service/pkg/metrics"
)

// ErrRegistryClosed is returned when registering on a closed registry.
var ErrRegistryClosed = errors.New("registry closed")

// Envelope operations.
const (
	OpEmit = "emit"
	OpJoin = "join"
)

// Envelope is a fan-out instruction exchanged between replicas. An emit with
// an empty Room targets every session.
type Envelope struct {
	Op       string          `json:"op"`
	Room     string          `json:"room,omitempty"`
	Except   string          `json:"except,omitempty"`
	Event    model.EventType `json:"event,omitempty"`
	Frame    json.RawMessage `json:"frame,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	ThreadID string          `json:"threadId,omitempty"`
}

// Relay carries envelopes to every replica, including the sender.
type Relay interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(handler func(Envelope)) error
}

// MembershipSource lists the threads an identity participates in.
type MembershipSource interface {
	ThreadIDs(ctx context.Context, userID string) ([]string, error)
}

// Registry maps identities to live sessions and sessions to rooms. Its
// lifecycle is owned by the server: Start before serving, Close on shutdown.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]map[*Session]struct{}
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]struct{}
	closed   bool

	members MembershipSource
	relay   Relay
	logger  *logger.Logger
}

// NewRegistry creates a registry. relay may be nil, in which case events are
// delivered to local sessions only.
func NewRegistry(members MembershipSource, relay Relay, log *logger.Logger) *Registry {
	return &Registry{
		byUser:   make(map[string]map[*Session]struct{}),
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]struct{}),
		members:  members,
		relay:    relay,
		logger:   log,
	}
}

// Start subscribes to the relay when one is configured.
func (r *Registry) Start(ctx context.Context) error {
	if r.relay == nil {
		return nil
	}
	return r.relay.Subscribe(r.handleEnvelope)
}

// Close closes every session and rejects further registrations.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for s := range r.sessions {
		r.closeSessionLocked(s)
		metrics.DecrementLiveSessions()
	}
	r.sessions = make(map[*Session]struct{})
	r.byUser = make(map[string]map[*Session]struct{})
	r.rooms = make(map[string]map[*Session]struct{})
	r.closed = true
}

// Register adds s to its personal room and to every thread room its identity
// participates in. It reports whether s is the identity's first session.
//
// The session is visible to JoinUser before memberships are loaded, so a
// thread created while they load still reaches it.
func (r *Registry) Register(ctx context.Context, s *Session) (bool, error) {
	first, err := r.add(s)
	if err != nil {
		return false, err
	}

	threadIDs, err := r.members.ThreadIDs(ctx, s.User.ID)
	if err != nil {
		r.Unregister(s)
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s]; !ok {
		return false, ErrRegistryClosed
	}
	for _, id := range threadIDs {
		r.joinLocked(s, ThreadRoom(id))
	}

	r.logger.Debug("session registered",
		zap.String("session_id", s.ID),
		zap.String("user_id", s.User.ID),
		zap.Int("rooms", len(s.rooms)),
		zap.Bool("first", first),
	)
	return first, nil
}

func (r *Registry) add(s *Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, ErrRegistryClosed
	}

	r.sessions[s] = struct{}{}
	own, ok := r.byUser[s.User.ID]
	if !ok {
		own = make(map[*Session]struct{})
		r.byUser[s.User.ID] = own
	}
	own[s] = struct{}{}
	r.joinLocked(s, UserRoom(s.User.ID))

	metrics.IncrementLiveSessions()
	return len(own) == 1, nil
}

// Unregister removes s from every room and closes its outbound queue. It
// reports whether s was the identity's last session.
func (r *Registry) Unregister(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s]; !ok {
		return false
	}
	delete(r.sessions, s)
	for room := range s.rooms {
		r.leaveLocked(s, room)
	}

	last := false
	if own, ok := r.byUser[s.User.ID]; ok {
		delete(own, s)
		if len(own) == 0 {
			delete(r.byUser, s.User.ID)
			last = true
		}
	}
	r.closeSessionLocked(s)

	metrics.DecrementLiveSessions()
	r.logger.Debug("session unregistered",
		zap.String("session_id", s.ID),
		zap.String("user_id", s.User.ID),
		zap.Bool("last", last),
	)
	return last
}

// Join subscribes s to a thread room.
func (r *Registry) Join(s *Session, threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s]; ok {
		r.joinLocked(s, ThreadRoom(threadID))
	}
}

// Leave unsubscribes s from a thread room.
func (r *Registry) Leave(s *Session, threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(s, ThreadRoom(threadID))
}

// InRoom reports whether s is subscribed to the thread room.
func (r *Registry) InRoom(s *Session, threadID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := s.rooms[ThreadRoom(threadID)]
	return ok
}

// JoinUser subscribes every session of userID, on every replica, to a
// thread room.
func (r *Registry) JoinUser(ctx context.Context, userID, threadID string) {
	env := Envelope{Op: OpJoin, UserID: userID, ThreadID: threadID}
	if r.publish(ctx, env) {
		return
	}
	r.joinUserLocal(userID, threadID)
}

// Online reports whether userID has at least one local session.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// SessionCount returns the number of local sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Emit delivers event to every session in room except those of exceptUser.
func (r *Registry) Emit(ctx context.Context, room string, event model.Event, exceptUser string) {
	frame, err := event.Encode()
	if err != nil {
		r.logger.Error("failed to encode event", zap.String("event", string(event.Type)), zap.Error(err))
		return
	}
	env := Envelope{Op: OpEmit, Room: room, Except: exceptUser, Event: event.Type, Frame: frame}
	if r.publish(ctx, env) {
		return
	}
	r.deliver(env)
}

// EmitAll delivers event to every session except those of exceptUser.
func (r *Registry) EmitAll(ctx context.Context, event model.Event, exceptUser string) {
	r.Emit(ctx, "", event, exceptUser)
}

// EmitToThread implements service.Notifier.
func (r *Registry) EmitToThread(ctx context.Context, threadID string, event model.Event, exceptUser string) {
	r.Emit(ctx, ThreadRoom(threadID), event, exceptUser)
}

// EmitToUser implements service.Notifier.
func (r *Registry) EmitToUser(ctx context.Context, userID string, event model.Event) {
	r.Emit(ctx, UserRoom(userID), event, "")
}

// Send queues event for s alone. It never goes through the relay.
func (r *Registry) Send(s *Session, event model.Event) bool {
	frame, err := event.Encode()
	if err != nil {
		r.logger.Error("failed to encode event", zap.String("event", string(event.Type)), zap.Error(err))
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enqueueLocked(s, event.Type, frame)
}

// publish hands env to the relay. It returns false when there is no relay or
// publishing failed, in which case the caller delivers locally.
func (r *Registry) publish(ctx context.Context, env Envelope) bool {
	if r.relay == nil {
		return false
	}
	if err := r.relay.Publish(ctx, env); err != nil {
		r.logger.Warn("relay publish failed, delivering locally",
			zap.String("op", env.Op),
			zap.String("room", env.Room),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (r *Registry) handleEnvelope(env Envelope) {
	switch env.Op {
	case OpEmit:
		r.deliver(env)
	case OpJoin:
		r.joinUserLocal(env.UserID, env.ThreadID)
	default:
		r.logger.Warn("unknown relay envelope", zap.String("op", env.Op))
	}
}

func (r *Registry) deliver(env Envelope) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := r.sessions
	if env.Room != "" {
		targets = r.rooms[env.Room]
	}
	for s := range targets {
		if env.Except != "" && s.User.ID == env.Except {
			continue
		}
		r.enqueueLocked(s, env.Event, env.Frame)
	}
}

// enqueueLocked never blocks: a full queue drops the frame for that session.
func (r *Registry) enqueueLocked(s *Session, event model.EventType, frame []byte) bool {
	if s.closed {
		return false
	}
	select {
	case s.send <- frame:
		metrics.RecordDelivery(string(event), true)
		return true
	default:
		metrics.RecordDelivery(string(event), false)
		r.logger.Warn("session send buffer full, event dropped",
			zap.String("session_id", s.ID),
			zap.String("user_id", s.User.ID),
			zap.String("event", string(event)),
		)
		return false
	}
}

func (r *Registry) joinUserLocal(userID, threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s := range r.byUser[userID] {
		r.joinLocked(s, ThreadRoom(threadID))
	}
}

func (r *Registry) joinLocked(s *Session, room string) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		r.rooms[room] = members
	}
	members[s] = struct{}{}
	s.rooms[room] = struct{}{}
}

func (r *Registry) leaveLocked(s *Session, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(s.rooms, room)
}

func (r *Registry) closeSessionLocked(s *Session) {
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}
