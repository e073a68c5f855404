package service

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/auth"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/internal/store"
	"github.com/snowhub/chat-service/pkg/logger"
)

// DefaultThreadPageSize is the page size of thread listings.
const DefaultThreadPageSize = 20

// ThreadService handles thread lookup, creation and history queries.
type ThreadService struct {
	threads   store.ThreadStore
	messages  store.MessageStore
	directory auth.Directory
	notifier  Notifier
	timeout   time.Duration
	logger    *logger.Logger
}

// NewThreadService creates a new thread service.
func NewThreadService(
	threads store.ThreadStore,
	messages store.MessageStore,
	directory auth.Directory,
	notifier Notifier,
	storeTimeout time.Duration,
	log *logger.Logger,
) *ThreadService {
	return &ThreadService{
		threads:   threads,
		messages:  messages,
		directory: directory,
		notifier:  notifier,
		timeout:   storeTimeout,
		logger:    log,
	}
}

// Open returns the direct thread between user and participantID, creating
// it on first contact. created reports whether this call inserted it.
func (s *ThreadService) Open(ctx context.Context, user *model.User, participantID string) (view *model.ThreadView, created bool, err error) {
	ctx, span := tracer.Start(ctx, "ThreadService.Open")
	defer func() { endSpan(span, err) }()

	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return nil, false, apperr.Validation("participant id is required")
	}
	if participantID == user.ID {
		return nil, false, apperr.Validation("cannot create chat with yourself")
	}

	sctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	other, err := s.directory.Lookup(sctx, participantID)
	if err != nil {
		return nil, false, err
	}
	if other.ID == user.ID {
		return nil, false, apperr.Validation("cannot create chat with yourself")
	}

	thread, created, err := s.threads.GetOrCreate(sctx, user.ID, other.ID)
	if err != nil {
		return nil, false, err
	}
	span.SetAttributes(attribute.String("chat.id", thread.ID), attribute.Bool("chat.created", created))

	if created {
		s.logger.Info("chat created",
			zap.String("chat_id", thread.ID),
			zap.String("user_id", user.ID),
			zap.String("participant_id", participantID),
		)
		for _, p := range thread.Participants {
			s.notifier.JoinUser(ctx, p, thread.ID)
		}
	}

	users := map[string]*model.User{user.ID: user, other.ID: other}
	v := model.NewThreadView(thread, user.ID, users)
	return &v, created, nil
}

// List returns a page of the user's threads, most recently active first.
func (s *ThreadService) List(ctx context.Context, user *model.User, page, limit int) (resp *model.ListThreadsResponse, err error) {
	ctx, span := tracer.Start(ctx, "ThreadService.List")
	defer func() { endSpan(span, err) }()

	if page < 1 {
		page = 1
	}
	if page > store.MaxPage {
		return nil, apperr.Validation("page is out of range")
	}
	if limit <= 0 {
		limit = DefaultThreadPageSize
	}
	limit = store.ClampLimit(limit)

	sctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	threads, total, err := s.threads.ListForParticipant(sctx, user.ID, page, limit)
	if err != nil {
		return nil, err
	}

	ids := lo.Uniq(lo.FlatMap(threads, func(t *model.Thread, _ int) []string {
		return t.Others(user.ID)
	}))
	users, err := s.lookupMany(sctx, ids)
	if err != nil {
		return nil, err
	}
	users[user.ID] = user

	chats := lo.Map(threads, func(t *model.Thread, _ int) model.ThreadView {
		return model.NewThreadView(t, user.ID, users)
	})
	return &model.ListThreadsResponse{
		Chats: chats,
		Pagination: model.Pagination{
			Current: page,
			Pages:   int((total + int64(limit) - 1) / int64(limit)),
			Total:   total,
			Limit:   limit,
		},
	}, nil
}

// Get returns a single thread as seen by user.
func (s *ThreadService) Get(ctx context.Context, user *model.User, threadID string) (view *model.ThreadView, err error) {
	ctx, span := tracer.Start(ctx, "ThreadService.Get", trace.WithAttributes(attribute.String("chat.id", threadID)))
	defer func() { endSpan(span, err) }()

	thread, err := s.authorized(ctx, user, threadID, "not authorized to view this chat")
	if err != nil {
		return nil, err
	}

	sctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	users, err := s.lookupMany(sctx, thread.Others(user.ID))
	if err != nil {
		return nil, err
	}
	users[user.ID] = user

	v := model.NewThreadView(thread, user.ID, users)
	return &v, nil
}

// Messages returns up to limit messages older than before, oldest first.
func (s *ThreadService) Messages(ctx context.Context, user *model.User, threadID string, before *time.Time, limit int) (resp *model.ListMessagesResponse, err error) {
	ctx, span := tracer.Start(ctx, "ThreadService.Messages", trace.WithAttributes(attribute.String("chat.id", threadID)))
	defer func() { endSpan(span, err) }()

	thread, err := s.authorized(ctx, user, threadID, "not authorized to view messages in this chat")
	if err != nil {
		return nil, err
	}
	limit = store.ClampLimit(limit)

	sctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	msgs, err := s.messages.ListPage(sctx, thread.ID, before, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.messages.Count(sctx, thread.ID)
	if err != nil {
		return nil, err
	}

	senders := lo.Uniq(lo.Map(msgs, func(m *model.Message, _ int) string { return m.SenderID }))
	users, err := s.lookupMany(sctx, lo.Without(senders, user.ID))
	if err != nil {
		return nil, err
	}
	users[user.ID] = user

	views := make([]model.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, model.NewMessageView(m, model.RefFor(m.SenderID, users), user.ID))
	}
	return &model.ListMessagesResponse{
		Messages: views,
		Pagination: model.MessagePage{
			Total:   total,
			Limit:   limit,
			HasMore: len(msgs) == limit,
		},
	}, nil
}

// Authorize checks that user participates in the thread.
func (s *ThreadService) Authorize(ctx context.Context, user *model.User, threadID string) error {
	_, err := s.authorized(ctx, user, threadID, "not authorized to access this chat")
	return err
}

func (s *ThreadService) authorized(ctx context.Context, user *model.User, threadID, denied string) (*model.Thread, error) {
	thread, err := loadThread(ctx, s.threads, s.timeout, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(user.ID) {
		return nil, apperr.Forbidden(denied)
	}
	return thread, nil
}

// lookupMany resolves display attributes. The map is always non-nil.
func (s *ThreadService) lookupMany(ctx context.Context, ids []string) (map[string]*model.User, error) {
	if len(ids) == 0 {
		return make(map[string]*model.User), nil
	}
	users, err := s.directory.LookupMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = make(map[string]*model.User)
	}
	return users, nil
}

// Memberships resolves the threads an identity participates in. The live
// registry uses it to subscribe new sessions.
type Memberships struct {
	threads store.ThreadStore
	timeout time.Duration
}

// NewMemberships creates a membership source over threads.
func NewMemberships(threads store.ThreadStore, storeTimeout time.Duration) *Memberships {
	return &Memberships{threads: threads, timeout: storeTimeout}
}

// ThreadIDs returns the ids of every thread the user participates in.
func (m *Memberships) ThreadIDs(ctx context.Context, userID string) ([]string, error) {
	sctx, cancel := withStoreTimeout(ctx, m.timeout)
	defer cancel()
	return m.threads.ListIDsForParticipant(sctx, userID)
}
