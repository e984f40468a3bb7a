package transport

import (
	"context"
	"fmt"
	"sync"
)

// Bus is an in-process Transport backed by buffered channels. It serves
// embedded deployments and tests; Publish is the producer side.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]chan Envelope
	closed bool
}

// NewBus creates an in-process transport.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan Envelope)}
}

// Publish delivers payload to every subscriber of channel, in order.
// Publishing to a closed bus is a no-op.
func (b *Bus) Publish(channel string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[channel] {
		ch <- Envelope{Channel: channel, Payload: payload}
	}
}

// Subscribe implements Transport.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan Envelope, func() error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, fmt.Errorf("subscribe %s: bus closed", channel)
	}
	ch := make(chan Envelope, 100)
	b.subs[channel] = append(b.subs[channel], ch)

	var once sync.Once
	unsubscribe := func() error {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[channel]
			for i, c := range subs {
				if c == ch {
					b.subs[channel] = append(subs[:i:i], subs[i+1:]...)
					close(ch)
					break
				}
			}
		})
		return nil
	}
	return ch, unsubscribe, nil
}

// Close implements Transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for channel, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, channel)
	}
	return nil
}
