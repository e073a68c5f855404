package model

import (
	"time"
)

// MaxBodyLength is the maximum message length in code points.
const MaxBodyLength = 2000

// MessageKind is the kind of a message payload.
type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindFile  MessageKind = "file"
)

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindFile:
		return true
	}
	return false
}

// Receipt records that a participant has seen a message.
type Receipt struct {
	UserID string    `json:"user" bson:"user"`
	ReadAt time.Time `json:"readAt" bson:"readAt"`
}

// Message is a single message in a thread.
type Message struct {
	ID        string      `json:"id"`
	ThreadID  string      `json:"chatId"`
	SenderID  string      `json:"senderId"`
	Body      string      `json:"message"`
	Kind      MessageKind `json:"type"`
	FileURL   string      `json:"fileUrl,omitempty"`
	ReadBy    []Receipt   `json:"readBy"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ReadByUser reports whether userID already holds a receipt for m.
func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own receipt slice.
func (m *Message) Clone() *Message {
	c := *m
	c.ReadBy = append([]Receipt(nil), m.ReadBy...)
	return &c
}

// MessageView is a message as rendered to a client.
type MessageView struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chatId"`
	Sender    UserRef     `json:"sender"`
	Message   string      `json:"message"`
	Type      MessageKind `json:"type"`
	FileURL   *string     `json:"fileUrl"`
	ReadBy    int         `json:"readBy"`
	IsRead    bool        `json:"isRead"`
	CreatedAt time.Time   `json:"createdAt"`
}

// NewMessageView renders m for viewerID. An empty viewerID renders the
// broadcast form, which is never marked read.
func NewMessageView(m *Message, sender UserRef, viewerID string) MessageView {
	view := MessageView{
		ID:        m.ID,
		ChatID:    m.ThreadID,
		Sender:    sender,
		Message:   m.Body,
		Type:      m.Kind,
		ReadBy:    len(m.ReadBy),
		CreatedAt: m.CreatedAt,
	}
	if m.FileURL != "" {
		url := m.FileURL
		view.FileURL = &url
	}
	if viewerID != "" {
		view.IsRead = m.ReadByUser(viewerID)
	}
	return view
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Message string      `json:"message" validate:"required"`
	Type    MessageKind `json:"type" validate:"omitempty,oneof=text image file"`
	FileURL string      `json:"fileUrl" validate:"omitempty,max=2048"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	Message MessageView `json:"message"`
	ChatID  string      `json:"chatId"`
}

// MessagePage describes pagination of a message listing.
type MessagePage struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	HasMore bool  `json:"hasMore"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages   []MessageView `json:"messages"`
	Pagination MessagePage   `json:"pagination"`
}
