// Package notify carries the engine's domain events to whatever delivery
// layer is listening. The engine treats delivery as fire-and-forget:
// publish failures are logged and never block a booking state transition.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	EventBookingRequested     = "BOOKING_REQUESTED"
	EventBookingConfirmed     = "BOOKING_CONFIRMED"
	EventBookingRejected      = "BOOKING_REJECTED"
	EventBookingAutoCancelled = "BOOKING_AUTO_CANCELLED"
)

// Event is one domain occurrence addressed to a single recipient (the
// trainer for new requests, the affected client otherwise).
type Event struct {
	Type        string         `json:"type"`
	RecipientID uuid.UUID      `json:"recipient_id"`
	BookingID   uuid.UUID      `json:"booking_id"`
	Payload     map[string]any `json:"payload,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// RedisNotifier publishes events to a per-recipient Redis channel. Push
// workers, websocket fan-out or polling bridges subscribe to
// "notify:<recipient>" and handle delivery themselves.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("failed to marshal event %s for booking %s: %v", ev.Type, ev.BookingID, err)
		return
	}

	channel := fmt.Sprintf("notify:%s", ev.RecipientID.String())
	if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("failed to publish event %s to %s: %v", ev.Type, channel, err)
	}
}

// NopNotifier drops every event. Used where no delivery layer is wired,
// e.g. the seed command.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}
