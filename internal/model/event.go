package model

import (
	"encoding/json"
)

// EventType is the name of a live channel event.
type EventType string

// Inbound events sent by clients.
const (
	EventJoinChat    EventType = "join_chat"
	EventLeaveChat   EventType = "leave_chat"
	EventSendMessage EventType = "send_message"
	EventTyping      EventType = "typing"
	EventMarkRead    EventType = "mark_read"
	EventUserOnline  EventType = "user_online"
)

// Outbound events pushed to clients.
const (
	EventNewMessage   EventType = "new_message"
	EventChatUpdated  EventType = "chat_updated"
	EventUserTyping   EventType = "user_typing"
	EventMessagesRead EventType = "messages_read"
	EventUserStatus   EventType = "user_status"
	EventError        EventType = "error"
)

// Presence statuses carried by user_status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Frame is the JSON envelope of every live channel message.
type Frame struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound event before encoding.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data,omitempty"`
}

// Encode renders e as a frame.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// NewMessageEvent is the payload of new_message.
type NewMessageEvent struct {
	ChatID  string      `json:"chatId"`
	Message MessageView `json:"message"`
}

// ChatUpdatedEvent is the payload of chat_updated.
type ChatUpdatedEvent struct {
	ChatID      string       `json:"chatId"`
	LastMessage *LastMessage `json:"lastMessage"`
	UnreadCount int          `json:"unreadCount"`
}

// UserTypingEvent is the payload of user_typing.
type UserTypingEvent struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// MessagesReadEvent is the payload of messages_read.
type MessagesReadEvent struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// UserStatusEvent is the payload of user_status.
type UserStatusEvent struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// ErrorEvent is the payload of error.
type ErrorEvent struct {
	Message string `json:"message"`
}

// SendMessageCommand is the payload of send_message.
type SendMessageCommand struct {
	ChatID  string      `json:"chatId" validate:"required"`
	Message string      `json:"message" validate:"required"`
	Type    MessageKind `json:"type" validate:"omitempty,oneof=text image file"`
	FileURL string      `json:"fileUrl" validate:"omitempty,max=2048"`
}

// TypingCommand is the payload of typing.
type TypingCommand struct {
	ChatID   string `json:"chatId" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

// MarkReadCommand is the payload of mark_read.
type MarkReadCommand struct {
	ChatID string `json:"chatId" validate:"required"`
}
