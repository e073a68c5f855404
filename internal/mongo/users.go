package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/model"
)

// userDocument is the subset of the account record read by the chat service.
// Accounts are owned by another service and may be keyed by ObjectID.
type userDocument struct {
	ID       any    `bson:"_id"`
	Username string `bson:"username"`
	Avatar   string `bson:"avatar"`
}

func (d *userDocument) idString() string {
	switch id := d.ID.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// UserDirectory resolves identities against the users collection.
type UserDirectory struct {
	coll *mongo.Collection
}

// NewUserDirectory creates a directory over the users collection.
func NewUserDirectory(c *Client) *UserDirectory {
	return &UserDirectory{coll: c.Users}
}

// canonicalID lowercases ObjectID-shaped ids so every lookup path reports
// the same form that ObjectID.Hex produces.
func canonicalID(id string) string {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid.Hex()
	}
	return id
}

// idCandidates returns the stored forms an id may take.
func idCandidates(id string) []any {
	id = canonicalID(id)
	candidates := []any{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		candidates = append(candidates, oid)
	}
	return candidates
}

// Lookup returns the user with the given id.
func (d *UserDirectory) Lookup(ctx context.Context, id string) (user *model.User, err error) {
	defer func(start time.Time) { observe("user_lookup", start, err) }(time.Now())

	opts := options.FindOne().SetProjection(bson.M{"username": 1, "avatar": 1})
	var doc userDocument
	err = d.coll.FindOne(ctx, bson.M{"_id": bson.M{"$in": idCandidates(id)}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, classify("find user", err)
	}
	return &model.User{ID: canonicalID(id), Username: doc.Username, Avatar: doc.Avatar}, nil
}

// LookupMany resolves several ids at once; unknown ids are omitted. Results
// are keyed by canonical id.
func (d *UserDirectory) LookupMany(ctx context.Context, ids []string) (users map[string]*model.User, err error) {
	defer func(start time.Time) { observe("user_lookup_many", start, err) }(time.Now())

	users = make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	var candidates []any
	for _, id := range ids {
		candidates = append(candidates, idCandidates(id)...)
	}

	opts := options.Find().SetProjection(bson.M{"username": 1, "avatar": 1})
	cursor, err := d.coll.Find(ctx, bson.M{"_id": bson.M{"$in": candidates}}, opts)
	if err != nil {
		return nil, classify("find users", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, classify("decode user", err)
		}
		id := doc.idString()
		users[id] = &model.User{ID: id, Username: doc.Username, Avatar: doc.Avatar}
	}
	return users, classify("find users", cursor.Err())
}
