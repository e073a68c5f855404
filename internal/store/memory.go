package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/model"
)

// Clock returns the current time. Stores truncate it to milliseconds so the
// in-memory and Mongo implementations order messages identically.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// Memory is an in-process ThreadStore and MessageStore. It backs the memory
// store backend and the service tests.
type Memory struct {
	mu       sync.RWMutex
	clock    Clock
	threads  map[string]*model.Thread
	pairs    map[string]string
	messages map[string]*model.Message
	byThread map[string][]string
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the store clock.
func WithClock(c Clock) MemoryOption {
	return func(m *Memory) { m.clock = c }
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		clock:    systemClock,
		threads:  make(map[string]*model.Thread),
		pairs:    make(map[string]string),
		messages: make(map[string]*model.Message),
		byThread: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) now() time.Time {
	return m.clock().UTC().Truncate(time.Millisecond)
}

// GetOrCreate implements ThreadStore.
func (m *Memory) GetOrCreate(ctx context.Context, a, b string) (*model.Thread, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, apperr.Unavailable("store unavailable", err)
	}
	if a == b {
		return nil, false, apperr.Validation("cannot create chat with yourself")
	}
	key := model.PairKey(a, b)

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.pairs[key]; ok {
		return m.threads[id].Clone(), false, nil
	}

	now := m.now()
	t := &model.Thread{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Kind:         model.ThreadKindDirect,
		Participants: []string{a, b},
		PairKey:      key,
		Unread:       map[string]int{a: 0, b: 0},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.threads[t.ID] = t
	m.pairs[key] = t.ID
	return t.Clone(), true, nil
}

// Get implements ThreadStore.
func (m *Memory) Get(ctx context.Context, id string) (*model.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Unavailable("store unavailable", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.threads[id]
	if !ok {
		return nil, apperr.NotFound("chat not found")
	}
	return t.Clone(), nil
}

// ListForParticipant implements ThreadStore.
func (m *Memory) ListForParticipant(ctx context.Context, userID string, page, pageSize int) ([]*model.Thread, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, apperr.Unavailable("store unavailable", err)
	}
	m.mu.RLock()
	var owned []*model.Thread
	for _, t := range m.threads {
		if t.HasParticipant(userID) {
			owned = append(owned, t.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		li, lj := owned[i].LastActivity(), owned[j].LastActivity()
		if !li.Equal(lj) {
			return li.After(lj)
		}
		return owned[i].UpdatedAt.After(owned[j].UpdatedAt)
	})

	total := int64(len(owned))
	start := min(PageOffset(page, pageSize), len(owned))
	end := min(start+max(pageSize, 0), len(owned))
	return owned[start:end], total, nil
}

// ListIDsForParticipant implements ThreadStore.
func (m *Memory) ListIDsForParticipant(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Unavailable("store unavailable", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, t := range m.threads {
		if t.HasParticipant(userID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetUnread implements ThreadStore.
func (m *Memory) GetUnread(ctx context.Context, threadID, userID string) (int, error) {
	t, err := m.Get(ctx, threadID)
	if err != nil {
		return 0, err
	}
	return t.UnreadFor(userID), nil
}

// ApplyMessage implements ThreadStore.
func (m *Memory) ApplyMessage(ctx context.Context, threadID string, last model.LastMessage, recipients []string) (*model.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Unavailable("store unavailable", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.threads[threadID]
	if !ok {
		return nil, apperr.NotFound("chat not found")
	}
	t.LastMessage = &last
	if t.Unread == nil {
		t.Unread = make(map[string]int)
	}
	for _, id := range t.Participants {
		if _, ok := t.Unread[id]; !ok {
			t.Unread[id] = 0
		}
	}
	for _, r := range recipients {
		t.Unread[r]++
	}
	t.UpdatedAt = m.now()
	return t.Clone(), nil
}

// ResetUnread implements ThreadStore.
func (m *Memory) ResetUnread(ctx context.Context, threadID, userID string) (*model.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Unavailable("store unavailable", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.threads[threadID]
	if !ok {
		return nil, apperr.NotFound("chat not found")
	}
	if t.Unread == nil {
		t.Unread = make(map[string]int)
	}
	t.Unread[userID] = 0
	t.UpdatedAt = m.now()
	return t.Clone(), nil
}

// Append implements MessageStore.
func (m *Memory) Append(ctx context.Context, thread *model.Thread, senderID, body string, kind model.MessageKind, fileURL string) (*model.Message, error) {
	body, kind, err := CheckAppend(thread, senderID, body, kind)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Unavailable("store unavailable", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[thread.ID]; !ok {
		return nil, apperr.NotFound("chat not found")
	}
	now := m.nextMessageTime(thread.ID)
	msg := &model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ThreadID:  thread.ID,
		SenderID:  senderID,
		Body:      body,
		Kind:      kind,
		FileURL:   fileURL,
		ReadBy:    []model.Receipt{{UserID: senderID, ReadAt: now}},
		CreatedAt: now,
	}
	m.messages[msg.ID] = msg
	m.byThread[thread.ID] = append(m.byThread[thread.ID], msg.ID)
	return msg.Clone(), nil
}

// nextMessageTime keeps message timestamps strictly increasing per thread,
// so a "before" cursor never splits messages sharing a millisecond.
func (m *Memory) nextMessageTime(threadID string) time.Time {
	now := m.now()
	ids := m.byThread[threadID]
	if len(ids) == 0 {
		return now
	}
	if last, ok := m.messages[ids[len(ids)-1]]; ok && !now.After(last.CreatedAt) {
		return last.CreatedAt.Add(time.Millisecond)
	}
	return now
}

// Delete implements MessageStore.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Unavailable("store unavailable", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return apperr.NotFound("message not found")
	}
	delete(m.messages, id)
	ids := m.byThread[msg.ThreadID]
	for i, mid := range ids {
		if mid == id {
			m.byThread[msg.ThreadID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// ListPage implements MessageStore.
func (m *Memory) ListPage(ctx context.Context, threadID string, before *time.Time, limit int) ([]*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Unavailable("store unavailable", err)
	}
	limit = ClampLimit(limit)

	m.mu.RLock()
	var candidates []*model.Message
	ids := m.byThread[threadID]
	for i := len(ids) - 1; i >= 0; i-- {
		msg := m.messages[ids[i]]
		if before != nil && !msg.CreatedAt.Before(*before) {
			continue
		}
		candidates = append(candidates, msg.Clone())
	}
	m.mu.RUnlock()

	// newest first, then keep the newest page and flip it for display
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	for i, j := 0, len(candidates)-1; i < j; i, j = i+1, j-1 {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return candidates, nil
}

// MarkReceipts implements MessageStore.
func (m *Memory) MarkReceipts(ctx context.Context, threadID, readerID string, at time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperr.Unavailable("store unavailable", err)
	}
	at = at.UTC().Truncate(time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, id := range m.byThread[threadID] {
		msg := m.messages[id]
		if msg.SenderID == readerID || msg.ReadByUser(readerID) {
			continue
		}
		msg.ReadBy = append(msg.ReadBy, model.Receipt{UserID: readerID, ReadAt: at})
		n++
	}
	return n, nil
}

// Count implements MessageStore.
func (m *Memory) Count(ctx context.Context, threadID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperr.Unavailable("store unavailable", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.byThread[threadID])), nil
}

// Ping reports the store as always reachable.
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}
