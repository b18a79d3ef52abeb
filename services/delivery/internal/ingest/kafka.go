// Package ingest consumes enqueue requests from kafka for point-of-sale
// systems that publish fiscal transactions instead of calling the HTTP API.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
	"github.com/bugradavut/dev-vizionmenu-sub013/services/delivery/internal/queue"
)

// EnqueueMessage is the kafka payload shape. It mirrors the HTTP enqueue body.
type EnqueueMessage struct {
	Scope          domain.DeviceScope `json:"scope"`
	Path           string             `json:"path"`
	Payload        json.RawMessage    `json:"payload"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

type Consumer struct {
	reader *kafka.Reader
	store  queue.Store
	log    *slog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, store queue.Store, log *slog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer requires group id")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka consumer requires a topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Consumer{reader: reader, store: store, log: log}, nil
}

// Run consumes until ctx is cancelled. Malformed messages are logged and
// skipped; the queue's idempotency key handles redelivery after a rebalance.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read enqueue message: %w", err)
		}

		var req EnqueueMessage
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			c.log.Warn("skipping malformed enqueue message",
				"topic", msg.Topic, "offset", msg.Offset, "error", err)
			continue
		}
		entry, err := c.store.Enqueue(ctx, domain.QueueEntry{
			Scope:          req.Scope,
			Path:           req.Path,
			Payload:        req.Payload,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			c.log.Error("enqueue from kafka failed",
				"scope", req.Scope.Key(), "offset", msg.Offset, "error", err)
			continue
		}
		c.log.Info("enqueued from kafka",
			"entry_id", entry.ID, "scope", entry.Scope.Key(), "sequence", entry.Sequence)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
