//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks

// Package store defines the persistence contracts for threads and messages.
package store

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/model"
)

const (
	// DefaultPageSize is used when a listing omits its limit.
	DefaultPageSize = 50
	// MaxPageSize caps every listing.
	MaxPageSize = 100
	// MaxPage is the highest page number a listing accepts.
	MaxPage = 100000
)

// ThreadStore persists conversation aggregates.
type ThreadStore interface {
	// GetOrCreate returns the direct thread between a and b, creating it on
	// first contact. created is true only for the caller that inserted it.
	GetOrCreate(ctx context.Context, a, b string) (thread *model.Thread, created bool, err error)
	Get(ctx context.Context, id string) (*model.Thread, error)
	ListForParticipant(ctx context.Context, userID string, page, pageSize int) ([]*model.Thread, int64, error)
	ListIDsForParticipant(ctx context.Context, userID string) ([]string, error)
	GetUnread(ctx context.Context, threadID, userID string) (int, error)
	// ApplyMessage sets the last-message snapshot and increments the unread
	// counter of every recipient by one in a single atomic update.
	ApplyMessage(ctx context.Context, threadID string, last model.LastMessage, recipients []string) (*model.Thread, error)
	ResetUnread(ctx context.Context, threadID, userID string) (*model.Thread, error)
}

// MessageStore persists messages and their read receipts.
type MessageStore interface {
	// Append stores a new message that already carries the sender's receipt.
	Append(ctx context.Context, thread *model.Thread, senderID, body string, kind model.MessageKind, fileURL string) (*model.Message, error)
	// Delete removes a message. Only used to roll back a failed send.
	Delete(ctx context.Context, id string) error
	// ListPage returns up to limit messages older than before, oldest first.
	ListPage(ctx context.Context, threadID string, before *time.Time, limit int) ([]*model.Message, error)
	// MarkReceipts receipts every message not sent by and not yet read by
	// reader. It returns the number of messages newly receipted.
	MarkReceipts(ctx context.Context, threadID, readerID string, at time.Time) (int64, error)
	Count(ctx context.Context, threadID string) (int64, error)
}

// NormalizeBody trims body and checks it against the length bound.
func NormalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", apperr.Validation("message text is required")
	}
	if !utf8.ValidString(body) {
		return "", apperr.Validation("message must be valid UTF-8")
	}
	if utf8.RuneCountInString(body) > model.MaxBodyLength {
		return "", apperr.Validation("message cannot exceed 2000 characters")
	}
	return body, nil
}

// NormalizeKind defaults an empty kind to text and rejects unknown kinds.
func NormalizeKind(kind model.MessageKind) (model.MessageKind, error) {
	if kind == "" {
		return model.MessageKindText, nil
	}
	if !kind.Valid() {
		return "", apperr.Validation("invalid message type")
	}
	return kind, nil
}

// CheckAppend runs the precondition checks shared by every MessageStore.
func CheckAppend(thread *model.Thread, senderID, body string, kind model.MessageKind) (string, model.MessageKind, error) {
	if thread == nil {
		return "", "", apperr.NotFound("chat not found")
	}
	if !thread.HasParticipant(senderID) {
		return "", "", apperr.Forbidden("not authorized to send messages in this chat")
	}
	body, err := NormalizeBody(body)
	if err != nil {
		return "", "", err
	}
	kind, err = NormalizeKind(kind)
	if err != nil {
		return "", "", err
	}
	return body, kind, nil
}

// ClampLimit bounds a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// PageOffset returns the number of rows to skip for a 1-based page. Pages
// below 1 count as the first page; the result is never negative.
func PageOffset(page, pageSize int) int {
	if page < 1 || pageSize <= 0 {
		return 0
	}
	if page > MaxPage {
		page = MaxPage
	}
	return (page - 1) * pageSize
}
