// Package consumer drains order lifecycle events from Kafka and reconciles
// cart state with them: a completed order empties the cart that produced it
// and releases any reservation still held for that user.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/cache"
)

type orderEvent struct {
	EventType     string `json:"event_type"`
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	ReservationID string `json:"reservation_id,omitempty"`
}

// Consumer reads order.completed events and clears the corresponding cart.
type Consumer struct {
	store  cache.CartStore
	reader *kafka.Reader
}

func NewConsumer(store cache.CartStore, brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{store: store, reader: reader}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consumeOne(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("consumer: error closing reader: %v", err)
	}
}

func (c *Consumer) consumeOne(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("consumer: error reading message: %v", err)
		}
		return
	}
	c.handleMessage(ctx, m.Value)
}

func (c *Consumer) handleMessage(ctx context.Context, value []byte) {
	var event orderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("consumer: error parsing message: %v", err)
		return
	}
	if event.UserID == "" {
		log.Printf("consumer: event missing user_id, skipping")
		return
	}
	if event.EventType != "" && event.EventType != "order.completed" {
		return
	}

	if err := c.store.ClearCart(ctx, event.UserID); err != nil && !errors.Is(err, cache.ErrCartNotFound) {
		log.Printf("consumer: failed to clear cart for user %s: %v", event.UserID, err)
	}

	if err := c.store.ClearReservation(ctx, event.UserID); err != nil && !errors.Is(err, cache.ErrReservationNotFound) {
		log.Printf("consumer: failed to clear reservation for user %s: %v", event.UserID, err)
	}

	log.Printf("consumer: cleared cart for user %s after order %s completed", event.UserID, event.OrderID)
}
