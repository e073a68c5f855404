package mongo

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/pkg/logger"
)

// testClient connects to MONGO_TEST_URI with a throwaway database.
func testClient(t *testing.T) *Client {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	db := "chat_test_" + uuid.NewString()[:8]
	c, err := Connect(ctx, Config{URI: uri, Database: db, OpTimeout: 5 * time.Second}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.EnsureIndexes(ctx))

	t.Cleanup(func() {
		_ = c.client.Database(db).Drop(ctx)
		_ = c.Close(ctx)
	})
	return c
}

func TestThreadRepository_GetOrCreate(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewThreadRepository(testClient(t))

	const callers = 10
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			thread, _, err := repo.GetOrCreate(ctx, a, b)
			require.NoError(t, err)
			ids[i] = thread.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		req.Equal(ids[0], id)
	}

	_, _, err := repo.GetOrCreate(ctx, "alice", "alice")
	req.True(apperr.Is(err, apperr.KindValidation))

	_, err = repo.Get(ctx, "missing")
	req.True(apperr.Is(err, apperr.KindNotFound))
}

func TestRepositories_SendAndRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := testClient(t)
	threads := NewThreadRepository(c)
	messages := NewMessageRepository(c)

	thread, created, err := threads.GetOrCreate(ctx, "alice", "bob")
	req.NoError(err)
	req.True(created)

	var sent []*model.Message
	for _, body := range []string{"hi", "are you there", "hello?"} {
		msg, err := messages.Append(ctx, thread, "alice", body, model.MessageKindText, "")
		req.NoError(err)
		sent = append(sent, msg)

		last := model.LastMessage{Text: msg.Body, SenderID: msg.SenderID, Timestamp: msg.CreatedAt}
		thread, err = threads.ApplyMessage(ctx, thread.ID, last, thread.Others("alice"))
		req.NoError(err)
		// distinct millisecond timestamps keep the page order deterministic
		time.Sleep(2 * time.Millisecond)
	}

	req.Equal(3, thread.UnreadFor("bob"))
	req.Equal(0, thread.UnreadFor("alice"))
	req.Equal("hello?", thread.LastMessage.Text)

	unread, err := threads.GetUnread(ctx, thread.ID, "bob")
	req.NoError(err)
	req.Equal(3, unread)

	page, err := messages.ListPage(ctx, thread.ID, nil, 2)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("are you there", page[0].Body)
	req.Equal("hello?", page[1].Body)

	older, err := messages.ListPage(ctx, thread.ID, &page[0].CreatedAt, 2)
	req.NoError(err)
	req.Len(older, 1)
	req.Equal(sent[0].ID, older[0].ID)

	n, err := messages.MarkReceipts(ctx, thread.ID, "bob", time.Now())
	req.NoError(err)
	req.Equal(int64(3), n)

	n, err = messages.MarkReceipts(ctx, thread.ID, "bob", time.Now())
	req.NoError(err)
	req.Zero(n)

	thread, err = threads.ResetUnread(ctx, thread.ID, "bob")
	req.NoError(err)
	req.Zero(thread.UnreadFor("bob"))

	ids, err := threads.ListIDsForParticipant(ctx, "bob")
	req.NoError(err)
	req.Equal([]string{thread.ID}, ids)

	list, total, err := threads.ListForParticipant(ctx, "alice", 1, 10)
	req.NoError(err)
	req.Equal(int64(1), total)
	req.Len(list, 1)

	req.NoError(messages.Delete(ctx, sent[2].ID))
	req.True(apperr.Is(messages.Delete(ctx, sent[2].ID), apperr.KindNotFound))

	count, err := messages.Count(ctx, thread.ID)
	req.NoError(err)
	req.Equal(int64(2), count)
}

func TestUserDirectory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := testClient(t)

	oid := primitive.NewObjectID()
	_, err := c.Users.InsertMany(ctx, []any{
		bson.M{"_id": oid, "username": "Alice", "avatar": "a.png"},
		bson.M{"_id": "bob", "username": "Bob"},
	})
	req.NoError(err)

	dir := NewUserDirectory(c)

	alice, err := dir.Lookup(ctx, oid.Hex())
	req.NoError(err)
	req.Equal(&model.User{ID: oid.Hex(), Username: "Alice", Avatar: "a.png"}, alice)

	_, err = dir.Lookup(ctx, "mallory")
	req.True(apperr.Is(err, apperr.KindNotFound))

	users, err := dir.LookupMany(ctx, []string{oid.Hex(), "bob", "mallory"})
	req.NoError(err)
	req.Len(users, 2)
	req.Equal("Bob", users["bob"].Username)
	req.Equal("Alice", users[oid.Hex()].Username)

	upper := strings.ToUpper(oid.Hex())
	alice, err = dir.Lookup(ctx, upper)
	req.NoError(err)
	req.Equal(oid.Hex(), alice.ID)

	users, err = dir.LookupMany(ctx, []string{upper})
	req.NoError(err)
	req.Equal("Alice", users[oid.Hex()].Username)
}

func TestCanonicalID(t *testing.T) {
	oid := primitive.NewObjectID()
	require.Equal(t, oid.Hex(), canonicalID(strings.ToUpper(oid.Hex())))
	require.Equal(t, oid.Hex(), canonicalID(oid.Hex()))
	require.Equal(t, "Bob", canonicalID("Bob"))
	require.Len(t, idCandidates(strings.ToUpper(oid.Hex())), 2)
}
