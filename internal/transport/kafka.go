package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Kafka is a Transport that maps each event channel onto one Kafka topic
// (<prefix>.<channel>) with a dedicated reader, preserving per-channel
// order while channels interleave freely.
type Kafka struct {
	brokers     []string
	topicPrefix string
	groupID     string

	mu      sync.Mutex
	readers []*kafka.Reader
	closed  bool
}

// NewKafka creates a Kafka transport. Brokers is a comma-separated list.
func NewKafka(brokers, topicPrefix, groupID string) *Kafka {
	return &Kafka{
		brokers:     strings.Split(brokers, ","),
		topicPrefix: topicPrefix,
		groupID:     groupID,
	}
}

// Topic returns the Kafka topic carrying an event channel.
func (k *Kafka) Topic(channel string) string {
	if k.topicPrefix == "" {
		return channel
	}
	return k.topicPrefix + "." + channel
}

// Subscribe implements Transport.
func (k *Kafka) Subscribe(ctx context.Context, channel string) (<-chan Envelope, func() error, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, nil, fmt.Errorf("subscribe %s: transport closed", channel)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		Topic:    k.Topic(channel),
		GroupID:  k.groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	k.readers = append(k.readers, reader)

	out := make(chan Envelope, 100)
	go func(r *kafka.Reader, ch string) {
		defer close(out)
		for {
			msg, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				slog.Warn("Kafka read error", "channel", ch, "error", err)
				continue
			}
			out <- Envelope{Channel: ch, Payload: msg.Value}
		}
	}(reader, channel)

	var once sync.Once
	unsubscribe := func() error {
		var err error
		once.Do(func() { err = reader.Close() })
		if err != nil {
			return fmt.Errorf("close reader %s: %w", channel, err)
		}
		return nil
	}
	return out, unsubscribe, nil
}

// Close implements Transport.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	var firstErr error
	for _, r := range k.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	k.readers = nil
	return firstErr
}
