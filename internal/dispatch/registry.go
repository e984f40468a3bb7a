// Package dispatch subscribes named event channels to handlers and owns
// their teardown. Events on one channel are handled strictly in arrival
// order; channels interleave freely.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/AgentGate/AgentGate/internal/transport"
)

// Handler processes one raw event payload. Handlers must tolerate
// at-least-once delivery and must not block on outbound calls.
type Handler func(ctx context.Context, payload []byte)

// Registry tracks channel subscriptions for one consuming surface.
type Registry struct {
	transport transport.Transport
	mounted   atomic.Bool

	mu     sync.Mutex
	unsubs []func() error
	wg     sync.WaitGroup
}

// New creates a mounted registry over the given transport.
func New(tr transport.Transport) *Registry {
	r := &Registry{transport: tr}
	r.mounted.Store(true)
	return r
}

// Mounted reports whether teardown has begun. Asynchronous work that
// completes after teardown must check this before mutating shared state.
func (r *Registry) Mounted() bool {
	return r.mounted.Load()
}

// Subscribe registers a handler for a channel. Registration requires a
// round trip to the transport and may fail; a successful subscription is
// torn down automatically on Close.
func (r *Registry) Subscribe(ctx context.Context, channel string, h Handler) error {
	if !r.mounted.Load() {
		return fmt.Errorf("subscribe %s: registry torn down", channel)
	}
	stream, unsubscribe, err := r.transport.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	r.mu.Lock()
	r.unsubs = append(r.unsubs, unsubscribe)
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for env := range stream {
			// Events fired after teardown began are dropped rather
			// than mutating torn-down state.
			if !r.mounted.Load() {
				continue
			}
			r.dispatch(ctx, channel, h, env.Payload)
		}
	}()
	return nil
}

func (r *Registry) dispatch(ctx context.Context, channel string, h Handler, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Handler panic", "channel", channel, "panic", rec)
		}
	}()
	h(ctx, payload)
}

// Close tears down every subscription exactly once. Failing unsubscribes do
// not stop the rest; errors are collected and joined.
func (r *Registry) Close() error {
	if !r.mounted.CompareAndSwap(true, false) {
		return nil
	}
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()

	var errs []error
	for _, unsubscribe := range unsubs {
		if err := unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	r.wg.Wait()
	return errors.Join(errs...)
}
