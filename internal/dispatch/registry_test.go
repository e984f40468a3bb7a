package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AgentGate/AgentGate/internal/transport"
)

type payloadLog struct {
	mu   sync.Mutex
	seen []string
}

func (l *payloadLog) add(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, string(p))
}

func (l *payloadLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.seen))
	copy(out, l.seen)
	return out
}

func (l *payloadLog) waitFor(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if got := l.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("handler saw %v, wanted %d payloads", l.snapshot(), n)
	return nil
}

func TestSubscribeDeliversInOrder(t *testing.T) {
	bus := transport.NewBus()
	defer bus.Close()
	r := New(bus)
	defer r.Close()

	var log payloadLog
	if err := r.Subscribe(context.Background(), "action_update", func(_ context.Context, p []byte) {
		log.add(p)
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < 5; i++ {
		bus.Publish("action_update", []byte(fmt.Sprintf("ev-%d", i)))
	}
	got := log.waitFor(t, 5)
	for i, p := range got {
		if p != fmt.Sprintf("ev-%d", i) {
			t.Fatalf("out of order at %d: %v", i, got)
		}
	}
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	bus := transport.NewBus()
	defer bus.Close()
	r := New(bus)
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	err := r.Subscribe(context.Background(), "metrics", func(context.Context, []byte) {})
	if err == nil {
		t.Fatal("subscribe after teardown must fail")
	}
}

func TestEventsAfterCloseAreDropped(t *testing.T) {
	bus := transport.NewBus()
	defer bus.Close()
	r := New(bus)

	var log payloadLog
	if err := r.Subscribe(context.Background(), "metrics", func(_ context.Context, p []byte) {
		log.add(p)
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if r.Mounted() {
		t.Fatal("registry should report unmounted after Close")
	}

	bus.Publish("metrics", []byte("late"))
	time.Sleep(20 * time.Millisecond)
	if got := log.snapshot(); len(got) != 0 {
		t.Fatalf("late events must be dropped, handler saw %v", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r := New(transport.NewBus())
	if err := r.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

// failingTransport hands out unsubscribes that fail, to exercise
// collect-and-continue teardown.
type failingTransport struct {
	channels []string
}

func (f *failingTransport) Subscribe(_ context.Context, channel string) (<-chan transport.Envelope, func() error, error) {
	f.channels = append(f.channels, channel)
	ch := make(chan transport.Envelope)
	close(ch)
	return ch, func() error {
		return fmt.Errorf("unsubscribe %s failed", channel)
	}, nil
}

func (f *failingTransport) Close() error { return nil }

func TestCloseCollectsAllUnsubscribeErrors(t *testing.T) {
	ft := &failingTransport{}
	r := New(ft)
	for _, ch := range []string{"a", "b", "c"} {
		if err := r.Subscribe(context.Background(), ch, func(context.Context, []byte) {}); err != nil {
			t.Fatalf("subscribe %s: %v", ch, err)
		}
	}

	err := r.Close()
	if err == nil {
		t.Fatal("close should surface unsubscribe failures")
	}
	for _, ch := range []string{"a", "b", "c"} {
		if !errorsContains(err, fmt.Sprintf("unsubscribe %s failed", ch)) {
			t.Fatalf("error %v missing channel %s", err, ch)
		}
	}
}

func errorsContains(err error, msg string) bool {
	for _, e := range unwrapJoined(err) {
		if e.Error() == msg {
			return true
		}
	}
	return false
}

func unwrapJoined(err error) []error {
	var multi interface{ Unwrap() []error }
	if errors.As(err, &multi) {
		return multi.Unwrap()
	}
	return []error{err}
}

func TestHandlerPanicIsContained(t *testing.T) {
	bus := transport.NewBus()
	defer bus.Close()
	r := New(bus)
	defer r.Close()

	var log payloadLog
	if err := r.Subscribe(context.Background(), "metrics", func(_ context.Context, p []byte) {
		if string(p) == "boom" {
			panic("handler blew up")
		}
		log.add(p)
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bus.Publish("metrics", []byte("boom"))
	bus.Publish("metrics", []byte("after"))
	if got := log.waitFor(t, 1); got[0] != "after" {
		t.Fatalf("dispatch did not survive the panic: %v", got)
	}
}
