package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	for _, key := range []string{"PORT", "STORE_BACKEND", "NATS_URL", "NATS_SUBJECT", "STORE_TIMEOUT", "ALLOWED_ORIGINS", "LIVE_EVENTS_PER_SECOND"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	req.Equal("8080", cfg.ServerPort)
	req.Equal(StoreMongo, cfg.StoreBackend)
	req.Equal(5*time.Second, cfg.StoreTimeout)
	req.Equal("chat.fanout", cfg.NATSSubject)
	req.False(cfg.RelayEnabled())
	req.Equal([]string{"*"}, cfg.AllowedOrigins)
	req.InDelta(20.0, cfg.LiveEventsPerSecond, 0.001)
}

func TestLoad_Overrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("LIVE_SEND_BUFFER", "8")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()
	req.Equal("9000", cfg.ServerPort)
	req.Equal(StoreMemory, cfg.StoreBackend)
	req.Equal(250*time.Millisecond, cfg.StoreTimeout)
	req.True(cfg.RelayEnabled())
	req.Equal([]string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	req.Equal(8, cfg.LiveSendBuffer)
	req.True(cfg.TracingEnabled)
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	req := require.New(t)
	t.Setenv("RATE_LIMIT_REQUESTS", "lots")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")

	cfg := Load()
	req.Equal(120, cfg.RateLimitRequests)
	req.Equal(time.Minute, cfg.RateLimitWindow)
}
