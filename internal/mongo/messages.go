package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/model"
	"github.com/snowhub/chat-service/internal/store"
)

// messageDocument is the stored shape of a message.
type messageDocument struct {
	ID        string            `bson:"_id"`
	ThreadID  string            `bson:"chat"`
	SenderID  string            `bson:"sender"`
	Body      string            `bson:"message"`
	Kind      model.MessageKind `bson:"type"`
	FileURL   string            `bson:"fileUrl"`
	ReadBy    []model.Receipt   `bson:"readBy"`
	CreatedAt time.Time         `bson:"createdAt"`
}

func (d *messageDocument) toModel() *model.Message {
	return &model.Message{
		ID:        d.ID,
		ThreadID:  d.ThreadID,
		SenderID:  d.SenderID,
		Body:      d.Body,
		Kind:      d.Kind,
		FileURL:   d.FileURL,
		ReadBy:    d.ReadBy,
		CreatedAt: d.CreatedAt,
	}
}

// MessageRepository is the MongoDB MessageStore.
type MessageRepository struct {
	coll *mongo.Collection
}

// NewMessageRepository creates a message repository over the messages collection.
func NewMessageRepository(c *Client) *MessageRepository {
	return &MessageRepository{coll: c.Messages}
}

// Append implements store.MessageStore.
func (r *MessageRepository) Append(ctx context.Context, thread *model.Thread, senderID, body string, kind model.MessageKind, fileURL string) (msg *model.Message, err error) {
	defer func(start time.Time) { observe("message_append", start, err) }(time.Now())

	body, kind, err = store.CheckAppend(thread, senderID, body, kind)
	if err != nil {
		return nil, err
	}

	ts := now()
	doc := messageDocument{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ThreadID:  thread.ID,
		SenderID:  senderID,
		Body:      body,
		Kind:      kind,
		FileURL:   fileURL,
		ReadBy:    []model.Receipt{{UserID: senderID, ReadAt: ts}},
		CreatedAt: ts,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, classify("insert message", err)
	}
	return doc.toModel(), nil
}

// Delete implements store.MessageStore.
func (r *MessageRepository) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observe("message_delete", start, err) }(time.Now())

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return classify("delete message", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("message not found")
	}
	return nil
}

// ListPage implements store.MessageStore.
func (r *MessageRepository) ListPage(ctx context.Context, threadID string, before *time.Time, limit int) (msgs []*model.Message, err error) {
	defer func(start time.Time) { observe("message_list", start, err) }(time.Now())

	limit = store.ClampLimit(limit)
	filter := bson.M{"chat": threadID}
	if before != nil {
		filter["createdAt"] = bson.M{"$lt": *before}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify("list messages", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, classify("decode message", err)
		}
		msgs = append(msgs, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, classify("list messages", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkReceipts implements store.MessageStore. The filter excludes messages
// already receipted by the reader, so a repeated call matches nothing.
func (r *MessageRepository) MarkReceipts(ctx context.Context, threadID, readerID string, at time.Time) (n int64, err error) {
	defer func(start time.Time) { observe("message_mark_receipts", start, err) }(time.Now())

	filter := bson.M{
		"chat":        threadID,
		"sender":      bson.M{"$ne": readerID},
		"readBy.user": bson.M{"$ne": readerID},
	}
	update := bson.M{
		"$push": bson.M{"readBy": model.Receipt{UserID: readerID, ReadAt: at.UTC().Truncate(time.Millisecond)}},
	}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, classify("mark receipts", err)
	}
	return res.ModifiedCount, nil
}

// Count implements store.MessageStore.
func (r *MessageRepository) Count(ctx context.Context, threadID string) (n int64, err error) {
	defer func(start time.Time) { observe("message_count", start, err) }(time.Now())

	n, err = r.coll.CountDocuments(ctx, bson.M{"chat": threadID})
	if err != nil {
		return 0, classify("count messages", err)
	}
	return n, nil
}
