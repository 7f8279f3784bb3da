package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211", 200*time.Millisecond)

	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	err := mc.Set("ratelimit:test.example", []byte("600"), 2*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("ratelimit:test.example")
	assert.NoError(t, err)
	assert.Equal(t, "600", string(value))

	assert.NoError(t, mc.Delete("ratelimit:test.example"))
	assert.NoError(t, mc.Delete("ratelimit:test.example"), "deleting twice is not an error")

	_, err = mc.Get("ratelimit:test.example")
	assert.True(t, errors.Is(err, ErrMiss))

	assert.NoError(t, mc.Close())
	assert.NoError(t, mc.Ping(), "client reconnects after Close")
}

func TestMemcacheServiceUnreachable(t *testing.T) {
	mc := NewMemcacheService("127.0.0.1:1", 100*time.Millisecond)

	err := mc.Ping()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "[cache] memcache: ping failed")
	assert.NoError(t, mc.Close())
}
