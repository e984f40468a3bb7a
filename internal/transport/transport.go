// Package transport delivers raw agent events to the listener registry.
// Delivery is at-least-once; ordering is guaranteed within a channel only.
package transport

import "context"

// Envelope is one raw event as delivered by the transport.
type Envelope struct {
	Channel string
	Payload []byte
}

// Transport provides per-channel event streams. Subscribe registration may
// involve a round trip to the host process, so it returns an error rather
// than failing silently later.
type Transport interface {
	// Subscribe returns an ordered stream for one channel plus an
	// idempotent unsubscribe function that closes the stream.
	Subscribe(ctx context.Context, channel string) (<-chan Envelope, func() error, error)
	// Close tears down every stream.
	Close() error
}
