package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/snowhub/chat-service/internal/realtime"
	"github.com/snowhub/chat-service/pkg/logger"
)

// The relay tests need a running server; set NATS_TEST_URL to enable them.
func testClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("NATS_TEST_URL")
	if url == "" {
		t.Skip("NATS_TEST_URL not set")
	}
	c, err := Connect(context.Background(), Config{URL: url}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestRelay_RoundTrip(t *testing.T) {
	req := require.New(t)
	c := testClient(t)

	subject := "chat.fanout.test." + time.Now().Format("150405.000000")
	relay := NewRelay(c, subject, logger.NewNop())
	defer relay.Close()

	got := make(chan realtime.Envelope, 1)
	req.NoError(relay.Subscribe(func(env realtime.Envelope) { got <- env }))
	req.Error(relay.Subscribe(func(realtime.Envelope) {}))

	sent := realtime.Envelope{Op: realtime.OpEmit, Room: realtime.ThreadRoom("t-1"), Except: "bob", Event: "new_message", Frame: []byte(`{"event":"new_message"}`)}
	req.NoError(relay.Publish(context.Background(), sent))

	select {
	case env := <-got:
		req.Equal(sent.Room, env.Room)
		req.Equal(sent.Except, env.Except)
		req.JSONEq(string(sent.Frame), string(env.Frame))
	case <-time.After(2 * time.Second):
		req.Fail("envelope not received")
	}
	req.True(c.IsConnected())
}

func TestRelay_PublishHonoursCancelledContext(t *testing.T) {
	req := require.New(t)
	relay := NewRelay(nil, "", logger.NewNop())
	req.Equal(DefaultSubject, relay.subject)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req.ErrorIs(relay.Publish(ctx, realtime.Envelope{Op: realtime.OpEmit}), context.Canceled)
}
