package publisher

import "context"

// Publisher represents a service for publishing tracker events
type Publisher interface {
	// Publish appends a message under key to the event stream
	Publish(ctx context.Context, key string, message []byte) error

	// Close closes the publisher connection
	Close() error
}

// NoopPublisher drops every message. Used when no stream is configured.
type NoopPublisher struct{}

// Publish implements Publisher
func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }

// Close implements Publisher
func (NoopPublisher) Close() error { return nil }
