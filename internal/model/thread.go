// Package model defines data structures for the chat service.
package model

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ThreadKind distinguishes direct threads from the reserved multi-party kind.
type ThreadKind string

const (
	ThreadKindDirect ThreadKind = "direct"
	// ThreadKindGroup is reserved; nothing in the service creates group threads.
	ThreadKindGroup ThreadKind = "group"
)

// LastMessage is the snapshot of the most recent message in a thread.
type LastMessage struct {
	Text      string    `json:"text" bson:"text"`
	SenderID  string    `json:"sender" bson:"sender"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Thread is a persisted two-party conversation aggregate.
type Thread struct {
	ID           string         `json:"id"`
	Kind         ThreadKind     `json:"type"`
	Participants []string       `json:"participants"`
	PairKey      string         `json:"-"`
	LastMessage  *LastMessage   `json:"lastMessage,omitempty"`
	Unread       map[string]int `json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// PairKey returns the order-independent key identifying the thread between a and b.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// HasParticipant reports whether userID is a current member of the thread.
func (t *Thread) HasParticipant(userID string) bool {
	return lo.Contains(t.Participants, userID)
}

// Others returns every participant except userID.
func (t *Thread) Others(userID string) []string {
	return lo.Without(t.Participants, userID)
}

// UnreadFor returns the unread counter of userID, 0 when absent.
func (t *Thread) UnreadFor(userID string) int {
	if t.Unread == nil {
		return 0
	}
	return t.Unread[userID]
}

// Clone returns a deep copy so callers never share the counter map.
func (t *Thread) Clone() *Thread {
	c := *t
	c.Participants = append([]string(nil), t.Participants...)
	if t.LastMessage != nil {
		lm := *t.LastMessage
		c.LastMessage = &lm
	}
	c.Unread = make(map[string]int, len(t.Unread))
	for k, v := range t.Unread {
		c.Unread[k] = v
	}
	return &c
}

// LastActivity is the sort key used when listing threads.
func (t *Thread) LastActivity() time.Time {
	if t.LastMessage == nil {
		return time.Time{}
	}
	return t.LastMessage.Timestamp
}

// ThreadView is a thread as seen by one of its participants.
type ThreadView struct {
	ID           string       `json:"id"`
	Type         ThreadKind   `json:"type"`
	Participant  *UserRef     `json:"participant"`
	Participants []UserRef    `json:"participants"`
	LastMessage  *LastMessage `json:"lastMessage"`
	UnreadCount  int          `json:"unreadCount"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// NewThreadView builds the viewer's projection of t. Users missing from users
// are rendered with their id only.
func NewThreadView(t *Thread, viewerID string, users map[string]*User) ThreadView {
	view := ThreadView{
		ID:          t.ID,
		Type:        t.Kind,
		LastMessage: t.LastMessage,
		UnreadCount: t.UnreadFor(viewerID),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	for _, id := range t.Participants {
		ref := RefFor(id, users)
		view.Participants = append(view.Participants, ref)
		if id != viewerID && t.Kind == ThreadKindDirect && view.Participant == nil {
			other := ref
			view.Participant = &other
		}
	}
	return view
}

// Pagination describes a page of threads.
type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
}

// ListThreadsResponse is the response for listing threads.
type ListThreadsResponse struct {
	Chats      []ThreadView `json:"chats"`
	Pagination Pagination   `json:"pagination"`
}

// OpenThreadRequest is the request to get or create a direct thread.
type OpenThreadRequest struct {
	ParticipantID string `json:"participantId" validate:"required,max=64"`
}

// ThreadResponse wraps a single thread view.
type ThreadResponse struct {
	Chat ThreadView `json:"chat"`
}

// MarkReadResponse is the response after marking a thread read.
type MarkReadResponse struct {
	ChatID string `json:"chatId"`
	Marked int64  `json:"marked"`
}
