package restaurant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Station event types.
const (
	EventTicketCreated   = "ticket.created"
	EventTicketPrinted   = "ticket.printed"
	EventTicketCompleted = "ticket.completed"
	EventItemVoided      = "item.voided"
)

// StationEvent tells a station board that something changed. Boards still
// poll; events only shorten the wait.
type StationEvent struct {
	Type     string     `json:"type"`
	Station  Station    `json:"station"`
	OrderID  uuid.UUID  `json:"order_id"`
	TicketID *uuid.UUID `json:"ticket_id,omitempty"`
	ItemID   *uuid.UUID `json:"item_id,omitempty"`
	Name     string     `json:"name,omitempty"`
	At       time.Time  `json:"at"`
}

// Notifier pushes station events.
type Notifier interface {
	Publish(ctx context.Context, evt StationEvent) error
}

// RedisNotifier publishes events on one Redis channel per station.
type RedisNotifier struct {
	client *redis.Client
	prefix string
}

// NewRedisNotifier constructs the notifier.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client, prefix: "pos:station:"}
}

// Channel returns the channel name for a station.
func (n *RedisNotifier) Channel(station Station) string {
	return n.prefix + station.String()
}

// Publish sends the event as JSON.
func (n *RedisNotifier) Publish(ctx context.Context, evt StationEvent) error {
	if n == nil || n.client == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.Channel(evt.Station), payload).Err()
}

func ticketEvent(kind string, t Ticket, at time.Time) StationEvent {
	id := t.ID
	return StationEvent{Type: kind, Station: t.Station, OrderID: t.OrderID, TicketID: &id, At: at}
}

func itemVoidedEvent(item OrderItem, at time.Time) StationEvent {
	id := item.ID
	return StationEvent{Type: EventItemVoided, Station: item.Station, OrderID: item.OrderID, ItemID: &id, Name: item.Name, At: at}
}
