// Package kafka publishes product-update events for downstream consumers
// that prefer push notification over polling the dirty flags.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// ProductUpdate is the event published after a non-empty index merge.
type ProductUpdate struct {
	Product   string    `json:"product"`
	Level     int       `json:"level"`
	Added     int       `json:"added"`
	Keys      []string  `json:"keys"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notifier produces ProductUpdate events to a Kafka topic.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a producer for the configured topic.
func NewNotifier(brokers []string, topic string, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// ProductUpdated builds and publishes one update event for the keys just
// merged into a product index.
func (n *Notifier) ProductUpdated(ctx context.Context, level int, product string, keys []string) error {
	msg, err := serializeToMessage(ProductUpdate{
		Product:   product,
		Level:     level,
		Added:     len(keys),
		Keys:      keys,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, msg)
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a ProductUpdate into a Kafka message keyed by
// product so per-product ordering is preserved.
func serializeToMessage(update ProductUpdate) (kafkago.Message, error) {
	data, err := json.Marshal(update)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize product update: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(update.Product),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "level", Value: []byte(strconv.Itoa(update.Level))},
			{Key: "updated_at", Value: []byte(update.UpdatedAt.Format(time.RFC3339))},
		},
	}, nil
}
