// Package mongo implements the thread, message and user stores on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/pkg/logger"
	"github.com/snowhub/chat-service/pkg/metrics"
)

// Config holds MongoDB connection configuration.
type Config struct {
	URI       string
	Database  string
	OpTimeout time.Duration
}

// Client wraps the driver client and the collections used by the service.
type Client struct {
	client   *mongo.Client
	Chats    *mongo.Collection
	Messages *mongo.Collection
	Users    *mongo.Collection
	logger   *logger.Logger
}

// Connect establishes a connection and verifies it with a ping.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(cfg.URI).SetServerAPIOptions(serverAPI)
	if cfg.OpTimeout > 0 {
		opts.SetTimeout(cfg.OpTimeout)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Database("admin").RunCommand(connectCtx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info("connected to MongoDB", zap.String("database", cfg.Database))

	db := client.Database(cfg.Database)
	return &Client{
		client:   client,
		Chats:    db.Collection("chats"),
		Messages: db.Collection("messages"),
		Users:    db.Collection("users"),
		logger:   log,
	}, nil
}

// EnsureIndexes creates the indexes the stores rely on. The unique pairKey
// index is what makes get-or-create race free.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	_, err := c.Chats.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_pair"),
		},
		{Keys: bson.D{{Key: "participants", Value: 1}}},
		{Keys: bson.D{{Key: "lastMessage.timestamp", Value: -1}, {Key: "updatedAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create chat indexes: %w", err)
	}

	_, err = c.Messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "chat", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	return nil
}

// Ping checks that the deployment is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// Close disconnects from the deployment.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// classify maps driver errors onto the service error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound("chat not found")
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		mongo.IsTimeout(err) ||
		mongo.IsNetworkError(err) {
		return apperr.Unavailable("store unavailable", fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// observe records the duration of a store operation.
func observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ObserveStoreOperation(op, status, time.Since(start).Seconds())
}
