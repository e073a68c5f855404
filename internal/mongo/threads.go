package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/internal/store"
)

// threadDocument is the stored shape of a thread.
type threadDocument struct {
	ID           string             `bson:"_id"`
	Kind         model.ThreadKind   `bson:"type"`
	Participants []string           `bson:"participants"`
	PairKey      string             `bson:"pairKey"`
	LastMessage  *model.LastMessage `bson:"lastMessage,omitempty"`
	Unread       map[string]int     `bson:"unread"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d *threadDocument) toModel() *model.Thread {
	unread := d.Unread
	if unread == nil {
		unread = make(map[string]int)
	}
	return &model.Thread{
		ID:           d.ID,
		Kind:         d.Kind,
		Participants: d.Participants,
		PairKey:      d.PairKey,
		LastMessage:  d.LastMessage,
		Unread:       unread,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// ThreadRepository is the MongoDB ThreadStore.
type ThreadRepository struct {
	coll *mongo.Collection
}

// NewThreadRepository creates a thread repository over the chats collection.
func NewThreadRepository(c *Client) *ThreadRepository {
	return &ThreadRepository{coll: c.Chats}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// GetOrCreate implements store.ThreadStore.
func (r *ThreadRepository) GetOrCreate(ctx context.Context, a, b string) (thread *model.Thread, created bool, err error) {
	defer func(start time.Time) { observe("chat_get_or_create", start, err) }(time.Now())

	if a == b {
		return nil, false, apperr.Validation("cannot create chat with yourself")
	}
	key := model.PairKey(a, b)

	existing, err := r.findByPair(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, false, err
	}

	ts := now()
	doc := threadDocument{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Kind:         model.ThreadKindDirect,
		Participants: []string{a, b},
		PairKey:      key,
		Unread:       map[string]int{a: 0, b: 0},
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// another writer won the race on the unique pair index
			existing, err := r.findByPair(ctx, key)
			return existing, false, err
		}
		return nil, false, classify("insert chat", err)
	}
	return doc.toModel(), true, nil
}

func (r *ThreadRepository) findByPair(ctx context.Context, key string) (*model.Thread, error) {
	var doc threadDocument
	if err := r.coll.FindOne(ctx, bson.M{"pairKey": key}).Decode(&doc); err != nil {
		return nil, classify("find chat by pair", err)
	}
	return doc.toModel(), nil
}

// Get implements store.ThreadStore.
func (r *ThreadRepository) Get(ctx context.Context, id string) (thread *model.Thread, err error) {
	defer func(start time.Time) { observe("chat_get", start, err) }(time.Now())

	var doc threadDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, classify("find chat", err)
	}
	return doc.toModel(), nil
}

// ListForParticipant implements store.ThreadStore.
func (r *ThreadRepository) ListForParticipant(ctx context.Context, userID string, page, pageSize int) (threads []*model.Thread, total int64, err error) {
	defer func(start time.Time) { observe("chat_list", start, err) }(time.Now())

	filter := bson.M{"participants": userID}
	opts := options.Find().
		SetSort(bson.D{{Key: "lastMessage.timestamp", Value: -1}, {Key: "updatedAt", Value: -1}}).
		SetSkip(int64(store.PageOffset(page, pageSize))).
		SetLimit(int64(pageSize))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, classify("list chats", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc threadDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, classify("decode chat", err)
		}
		threads = append(threads, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, classify("list chats", err)
	}

	total, err = r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, classify("count chats", err)
	}
	return threads, total, nil
}

// ListIDsForParticipant implements store.ThreadStore.
func (r *ThreadRepository) ListIDsForParticipant(ctx context.Context, userID string) (ids []string, err error) {
	defer func(start time.Time) { observe("chat_list_ids", start, err) }(time.Now())

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, classify("list chat ids", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, classify("decode chat id", err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, classify("list chat ids", cursor.Err())
}

// GetUnread implements store.ThreadStore.
func (r *ThreadRepository) GetUnread(ctx context.Context, threadID, userID string) (int, error) {
	t, err := r.Get(ctx, threadID)
	if err != nil {
		return 0, err
	}
	return t.UnreadFor(userID), nil
}

// ApplyMessage implements store.ThreadStore. The snapshot and every counter
// increment land in one findOneAndUpdate, so concurrent sends cannot lose an
// increment.
func (r *ThreadRepository) ApplyMessage(ctx context.Context, threadID string, last model.LastMessage, recipients []string) (thread *model.Thread, err error) {
	defer func(start time.Time) { observe("chat_apply_message", start, err) }(time.Now())

	inc := bson.M{}
	for _, id := range recipients {
		inc["unread."+id] = 1
	}
	update := bson.M{
		"$set": bson.M{"lastMessage": last, "updatedAt": now()},
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return r.findOneAndUpdate(ctx, threadID, update)
}

// ResetUnread implements store.ThreadStore.
func (r *ThreadRepository) ResetUnread(ctx context.Context, threadID, userID string) (thread *model.Thread, err error) {
	defer func(start time.Time) { observe("chat_reset_unread", start, err) }(time.Now())

	update := bson.M{
		"$set": bson.M{"unread." + userID: 0, "updatedAt": now()},
	}
	return r.findOneAndUpdate(ctx, threadID, update)
}

func (r *ThreadRepository) findOneAndUpdate(ctx context.Context, threadID string, update bson.M) (*model.Thread, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc threadDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": threadID}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("chat not found")
		}
		return nil, classify("update chat", err)
	}
	return doc.toModel(), nil
}
