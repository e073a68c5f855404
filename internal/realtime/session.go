// Package realtime tracks live sessions, their room memberships and the
// fan-out of events to them.
package realtime

import (
	"github.com/google/uuid"

	"github.com/snowhub/chat-service/internal/model"
)

// DefaultSendBuffer is the outbound queue length of a session.
const DefaultSendBuffer = 256

// Session is one live connection of an identity. Several sessions may exist
// for the same identity.
type Session struct {
	ID   string
	User *model.User

	send chan []byte

	// Guarded by the owning Registry.
	rooms  map[string]struct{}
	closed bool
}

// NewSession creates a session with an outbound buffer of the given size.
func NewSession(user *model.User, buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Session{
		ID:    uuid.Must(uuid.NewV7()).String(),
		User:  user,
		send:  make(chan []byte, buffer),
		rooms: make(map[string]struct{}),
	}
}

// Outbound returns the queue of encoded frames for the writer. It is closed
// when the session is unregistered or the registry shuts down.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// ThreadRoom is the room of every session subscribed to a thread.
func ThreadRoom(threadID string) string {
	return "chat:" + threadID
}

// UserRoom is the personal room of an identity.
func UserRoom(userID string) string {
	return "user:" + userID
}
