// Package service implements the chat send/read protocol and thread queries.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/internal/store"
	"github.com/snowhub/chat-service/pkg/logger"
	"github.com/snowhub/chat-service/pkg/metrics"
	"github.com/snowhub/chat-service/pkg/tracing"
)

// Ingress paths, used as a metrics label.
const (
	IngressREST = "rest"
	IngressLive = "live"
)

var tracer = tracing.Tracer("github.com/snowhub/chat-service/internal/service")

// Notifier delivers events to live sessions. Delivery is best effort and
// never reports failure to the caller.
type Notifier interface {
	EmitToThread(ctx context.Context, threadID string, event model.Event, exceptUser string)
	EmitToUser(ctx context.Context, userID string, event model.Event)
	JoinUser(ctx context.Context, userID, threadID string)
}

// SendInput is the content of a message being sent.
type SendInput struct {
	Body    string
	Kind    model.MessageKind
	FileURL string
}

// Dispatcher runs the send and mark-read protocol shared by the REST and
// live gateways.
type Dispatcher struct {
	threads  store.ThreadStore
	messages store.MessageStore
	notifier Notifier
	timeout  time.Duration
	locks    *keyedMutex
	now      func() time.Time
	logger   *logger.Logger
}

// NewDispatcher creates a new dispatcher. Every store call is bounded by
// storeTimeout when it is positive.
func NewDispatcher(
	threads store.ThreadStore,
	messages store.MessageStore,
	notifier Notifier,
	storeTimeout time.Duration,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		threads:  threads,
		messages: messages,
		notifier: notifier,
		timeout:  storeTimeout,
		locks:    newKeyedMutex(),
		now:      time.Now,
		logger:   log,
	}
}

// SendMessage persists a message from sender, updates the thread's last
// message and the recipients' unread counters, then fans the result out.
func (d *Dispatcher) SendMessage(ctx context.Context, threadID string, sender *model.User, in SendInput, ingress string) (view *model.MessageView, err error) {
	ctx, span := tracer.Start(ctx, "Dispatcher.SendMessage", trace.WithAttributes(
		attribute.String("chat.id", threadID),
		attribute.String("chat.ingress", ingress),
	))
	defer func() { endSpan(span, err) }()

	thread, err := loadThread(ctx, d.threads, d.timeout, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(sender.ID) {
		return nil, apperr.Forbidden("not authorized to send messages in this chat")
	}
	body, err := store.NormalizeBody(in.Body)
	if err != nil {
		return nil, err
	}
	kind, err := store.NormalizeKind(in.Kind)
	if err != nil {
		return nil, err
	}

	unlock, err := d.lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	msg, updated, err := d.persist(ctx, thread, sender.ID, body, kind, in.FileURL)
	if err != nil {
		return nil, err
	}

	// Emitting while holding the thread lock keeps event order equal to
	// persistence order.
	d.notifier.EmitToThread(ctx, threadID, model.Event{
		Type: model.EventNewMessage,
		Data: model.NewMessageEvent{ChatID: threadID, Message: model.NewMessageView(msg, sender.Ref(), "")},
	}, "")
	for _, p := range updated.Participants {
		d.notifier.EmitToUser(ctx, p, model.Event{
			Type: model.EventChatUpdated,
			Data: model.ChatUpdatedEvent{ChatID: threadID, LastMessage: updated.LastMessage, UnreadCount: updated.UnreadFor(p)},
		})
	}

	metrics.MessagesTotal.WithLabelValues(ingress).Inc()

	v := model.NewMessageView(msg, sender.Ref(), sender.ID)
	return &v, nil
}

// persist appends the message and applies it to the thread. A failed thread
// update deletes the message again so neither write is visible alone.
func (d *Dispatcher) persist(ctx context.Context, thread *model.Thread, senderID, body string, kind model.MessageKind, fileURL string) (*model.Message, *model.Thread, error) {
	sctx, cancel := withStoreTimeout(ctx, d.timeout)
	defer cancel()

	msg, err := d.messages.Append(sctx, thread, senderID, body, kind, fileURL)
	if err != nil {
		return nil, nil, err
	}

	last := model.LastMessage{Text: msg.Body, SenderID: senderID, Timestamp: msg.CreatedAt}
	updated, err := d.threads.ApplyMessage(sctx, thread.ID, last, thread.Others(senderID))
	if err == nil {
		return msg, updated, nil
	}

	rctx, rcancel := withStoreTimeout(context.WithoutCancel(ctx), d.timeout)
	defer rcancel()
	if derr := d.messages.Delete(rctx, msg.ID); derr != nil {
		d.logger.Error("failed to roll back message",
			zap.String("chat_id", thread.ID),
			zap.String("message_id", msg.ID),
			zap.Error(derr),
		)
	}
	return nil, nil, err
}

// MarkRead receipts every message in the thread not sent by reader and
// resets the reader's unread counter. It returns the number of messages
// newly receipted; repeating the call is harmless.
func (d *Dispatcher) MarkRead(ctx context.Context, threadID string, reader *model.User) (n int64, err error) {
	ctx, span := tracer.Start(ctx, "Dispatcher.MarkRead", trace.WithAttributes(
		attribute.String("chat.id", threadID),
	))
	defer func() { endSpan(span, err) }()

	thread, err := loadThread(ctx, d.threads, d.timeout, threadID)
	if err != nil {
		return 0, err
	}
	if !thread.HasParticipant(reader.ID) {
		return 0, apperr.Forbidden("not authorized to access this chat")
	}

	unlock, err := d.lock(ctx, threadID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	sctx, cancel := withStoreTimeout(ctx, d.timeout)
	defer cancel()

	n, err = d.messages.MarkReceipts(sctx, threadID, reader.ID, d.now())
	if err != nil {
		return 0, err
	}
	updated, err := d.threads.ResetUnread(sctx, threadID, reader.ID)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("chat.receipts", n))

	d.notifier.EmitToThread(ctx, threadID, model.Event{
		Type: model.EventMessagesRead,
		Data: model.MessagesReadEvent{ChatID: threadID, UserID: reader.ID},
	}, reader.ID)
	d.notifier.EmitToUser(ctx, reader.ID, model.Event{
		Type: model.EventChatUpdated,
		Data: model.ChatUpdatedEvent{ChatID: threadID, LastMessage: updated.LastMessage, UnreadCount: 0},
	})

	metrics.RecordRead(n)
	return n, nil
}

// lock waits at most one store timeout for the thread's turn.
func (d *Dispatcher) lock(ctx context.Context, threadID string) (func(), error) {
	lctx, cancel := withStoreTimeout(ctx, d.timeout)
	defer cancel()
	unlock, err := d.locks.Lock(lctx, threadID)
	if err != nil {
		metrics.LockTimeoutsTotal.Inc()
		return nil, apperr.Unavailable("chat is busy, try again", err)
	}
	return unlock, nil
}

func loadThread(ctx context.Context, threads store.ThreadStore, timeout time.Duration, id string) (*model.Thread, error) {
	if id == "" {
		return nil, apperr.Validation("chat id is required")
	}
	sctx, cancel := withStoreTimeout(ctx, timeout)
	defer cancel()
	return threads.Get(sctx, id)
}

func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.Message(err))
	}
	span.End()
}
