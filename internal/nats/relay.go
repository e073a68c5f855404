package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/snowhub/chat-service/internal/realtime"
	"github.com/snowhub/chat-service/pkg/logger"
)

// DefaultSubject is the subject fan-out envelopes are published on.
const DefaultSubject = "chat.fanout"

// Relay publishes fan-out envelopes on a NATS subject and hands every
// envelope received on it, including its own, to the local registry.
type Relay struct {
	client  *Client
	subject string
	logger  *logger.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewRelay creates a relay on subject.
func NewRelay(client *Client, subject string, log *logger.Logger) *Relay {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Relay{client: client, subject: subject, logger: log}
}

// Publish implements realtime.Relay.
func (r *Relay) Publish(ctx context.Context, env realtime.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := r.client.Conn().Publish(r.subject, data); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}
	return nil
}

// Subscribe implements realtime.Relay. Only one subscription is kept.
func (r *Relay) Subscribe(handler func(realtime.Envelope)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return fmt.Errorf("relay already subscribed to %s", r.subject)
	}

	sub, err := r.client.Conn().Subscribe(r.subject, func(msg *nats.Msg) {
		var env realtime.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			r.logger.Warn("dropping malformed envelope", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		handler(env)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.subject, err)
	}
	r.sub = sub
	r.logger.Info("fan-out relay subscribed", zap.String("subject", r.subject))
	return nil
}

// Close removes the subscription.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		return nil
	}
	err := r.sub.Unsubscribe()
	r.sub = nil
	return err
}
