package publisher

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	stream := "test_pricetracker_events"

	publisher := NewRedisPublisher("localhost:6379", 0, stream, 100)
	defer publisher.Close()

	// Test if Redis is available
	pingCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := publisher.Ping(pingCtx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 0})
	defer client.Close()
	defer client.Del(ctx, stream)
	client.Del(ctx, stream)

	err := publisher.Publish(ctx, "reading", []byte(`{"status":"running"}`))
	require.NoError(t, err)

	entries, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	encoded, ok := entries[0].Values["reading"].(string)
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"running"}`, string(decoded))
}

func TestRedisPublisherUnreachable(t *testing.T) {
	publisher := NewRedisPublisher("127.0.0.1:1", 0, "events", 10)
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := publisher.Publish(ctx, "reading", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[publisher] redis")
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "reading", []byte("{}")))
	assert.NoError(t, p.Close())
}
