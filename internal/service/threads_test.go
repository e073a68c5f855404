package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/auth"
	"github.com/snowhub/chat-service/internal/mocks"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/internal/store"
	"github.com/snowhub/chat-service/pkg/logger"
)

func newDirectory() *auth.StaticDirectory {
	return auth.NewStaticDirectory(false, alice, bob, eve)
}

func TestThreadService_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("should create once and join both participants", func(t *testing.T) {
		req := require.New(t)
		f := newFixture()

		first, created, err := f.threads.Open(ctx, alice, bob.ID)
		req.NoError(err)
		req.True(created)
		req.Equal(bob.ID, first.Participant.ID)
		req.Equal("Bob", first.Participant.Username)
		req.ElementsMatch([]string{"alice@" + first.ID, "bob@" + first.ID}, f.notifier.joins)

		second, created, err := f.threads.Open(ctx, bob, alice.ID)
		req.NoError(err)
		req.False(created)
		req.Equal(first.ID, second.ID)
		req.Equal(alice.ID, second.Participant.ID)
		req.Len(f.notifier.joins, 2)
	})

	t.Run("should converge on one thread under concurrent opens", func(t *testing.T) {
		req := require.New(t)
		f := newFixture()

		const callers = 20
		ids := make([]string, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				self, other := alice, bob
				if i%2 == 1 {
					self, other = bob, alice
				}
				v, _, err := f.threads.Open(ctx, self, other.ID)
				if err == nil {
					ids[i] = v.ID
				}
			}(i)
		}
		wg.Wait()
		for _, id := range ids {
			req.Equal(ids[0], id)
		}
	})

	t.Run("should reject self and empty participants", func(t *testing.T) {
		req := require.New(t)
		f := newFixture()

		_, _, err := f.threads.Open(ctx, alice, alice.ID)
		req.True(apperr.Is(err, apperr.KindValidation))

		_, _, err = f.threads.Open(ctx, alice, " ")
		req.True(apperr.Is(err, apperr.KindValidation))
	})

	t.Run("should return not found for unknown participants", func(t *testing.T) {
		req := require.New(t)
		f := newFixture()

		_, _, err := f.threads.Open(ctx, alice, "nobody")
		req.True(apperr.Is(err, apperr.KindNotFound))
	})
}

func TestThreadService_List(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	carol := &model.User{ID: "carol", Username: "Carol"}
	dir := newDirectory()
	dir.Put(carol)
	f.threads = NewThreadService(f.store, f.store, dir, f.notifier, time.Second, logger.NewNop())

	withBob, _, err := f.threads.Open(ctx, alice, bob.ID)
	req.NoError(err)
	withCarol, _, err := f.threads.Open(ctx, alice, carol.ID)
	req.NoError(err)
	quiet, _, err := f.threads.Open(ctx, alice, eve.ID)
	req.NoError(err)

	_, err = f.dispatcher.SendMessage(ctx, withBob.ID, bob, SendInput{Body: "first"}, IngressREST)
	req.NoError(err)
	time.Sleep(2 * time.Millisecond)
	_, err = f.dispatcher.SendMessage(ctx, withCarol.ID, carol, SendInput{Body: "second"}, IngressREST)
	req.NoError(err)

	resp, err := f.threads.List(ctx, alice, 1, 2)
	req.NoError(err)
	req.Len(resp.Chats, 2)
	req.Equal(withCarol.ID, resp.Chats[0].ID)
	req.Equal("Carol", resp.Chats[0].Participant.Username)
	req.Equal(1, resp.Chats[0].UnreadCount)
	req.Equal(withBob.ID, resp.Chats[1].ID)
	req.Equal(model.Pagination{Current: 1, Pages: 2, Total: 3, Limit: 2}, resp.Pagination)

	resp, err = f.threads.List(ctx, alice, 2, 2)
	req.NoError(err)
	req.Len(resp.Chats, 1)
	req.Equal(quiet.ID, resp.Chats[0].ID)
	req.Nil(resp.Chats[0].LastMessage)

	t.Run("should reject pages past the cap without touching the store", func(t *testing.T) {
		req := require.New(t)
		req.NotPanics(func() {
			_, err := f.threads.List(ctx, alice, math.MaxInt64/10, 20)
			req.True(apperr.Is(err, apperr.KindValidation))
		})

		resp, err := f.threads.List(ctx, alice, store.MaxPage, store.MaxPageSize)
		req.NoError(err)
		req.Empty(resp.Chats)
		req.EqualValues(3, resp.Pagination.Total)
	})
}

func TestThreadService_GetAndAuthorize(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	view, _, err := f.threads.Open(ctx, alice, bob.ID)
	req.NoError(err)

	req.NoError(f.threads.Authorize(ctx, bob, view.ID))
	req.True(apperr.Is(f.threads.Authorize(ctx, eve, view.ID), apperr.KindForbidden))

	_, err = f.threads.Get(ctx, eve, view.ID)
	req.True(apperr.Is(err, apperr.KindForbidden))

	_, err = f.threads.Get(ctx, alice, "missing")
	req.True(apperr.Is(err, apperr.KindNotFound))

	ids, err := NewMemberships(f.store, time.Second).ThreadIDs(ctx, bob.ID)
	req.NoError(err)
	req.Equal([]string{view.ID}, ids)
}

func TestThreadService_Messages_Paginates(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	mem := store.NewMemory(store.WithClock(func() func() time.Time {
		var mu sync.Mutex
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		return func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(time.Second)
			return now
		}
	}()))
	n := &recordingNotifier{}
	d := NewDispatcher(mem, mem, n, time.Second, logger.NewNop())
	s := NewThreadService(mem, mem, newDirectory(), n, time.Second, logger.NewNop())

	view, _, err := s.Open(ctx, alice, bob.ID)
	req.NoError(err)
	for i := 0; i < 25; i++ {
		_, err := d.SendMessage(ctx, view.ID, alice, SendInput{Body: "msg"}, IngressREST)
		req.NoError(err)
	}

	first, err := s.Messages(ctx, bob, view.ID, nil, 10)
	req.NoError(err)
	req.Len(first.Messages, 10)
	req.True(first.Pagination.HasMore)
	req.EqualValues(25, first.Pagination.Total)
	req.Equal("Alice", first.Messages[0].Sender.Username)

	seen := map[string]bool{}
	for _, m := range first.Messages {
		seen[m.ID] = true
	}
	before := first.Messages[0].CreatedAt
	for {
		page, err := s.Messages(ctx, bob, view.ID, &before, 10)
		req.NoError(err)
		for i, m := range page.Messages {
			req.False(seen[m.ID], "page overlap")
			seen[m.ID] = true
			if i > 0 {
				req.True(page.Messages[i-1].CreatedAt.Before(m.CreatedAt))
			}
		}
		if !page.Pagination.HasMore {
			break
		}
		before = page.Messages[0].CreatedAt
	}
	req.Len(seen, 25)

	_, err = s.Messages(ctx, eve, view.ID, nil, 10)
	req.True(apperr.Is(err, apperr.KindForbidden))
}

func TestThreadService_DirectoryOutage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("should surface unavailable directory on open", func(t *testing.T) {
		req := require.New(t)
		dir := mocks.NewMockDirectory(ctrl)
		mem := store.NewMemory()
		s := NewThreadService(mem, mem, dir, &recordingNotifier{}, time.Second, logger.NewNop())

		dir.EXPECT().Lookup(gomock.Any(), bob.ID).
			Return(nil, apperr.Unavailable("store unavailable", errors.New("timeout"))).
			Times(1)

		_, _, err := s.Open(context.Background(), alice, bob.ID)
		req.True(apperr.Is(err, apperr.KindUnavailable))
	})
	t.Run("should key the thread by the directory's id", func(t *testing.T) {
		req := require.New(t)
		dir := mocks.NewMockDirectory(ctrl)
		mem := store.NewMemory()
		s := NewThreadService(mem, mem, dir, &recordingNotifier{}, time.Second, logger.NewNop())

		dir.EXPECT().Lookup(gomock.Any(), "BOB").Return(bob, nil)
		dir.EXPECT().Lookup(gomock.Any(), "ALICE").Return(alice, nil)

		view, _, err := s.Open(context.Background(), alice, "BOB")
		req.NoError(err)
		req.Equal(bob.ID, view.Participant.ID)

		thread, err := mem.Get(context.Background(), view.ID)
		req.NoError(err)
		req.ElementsMatch([]string{alice.ID, bob.ID}, thread.Participants)

		_, _, err = s.Open(context.Background(), alice, "ALICE")
		req.True(apperr.Is(err, apperr.KindValidation))
	})
}
