// Package events publishes order lifecycle events for consumers outside the
// service, such as kitchen printers or reporting jobs.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types, used as AMQP routing keys.
const (
	OrderCreated        = "order.created"
	OrderItemsReplaced  = "order.items_replaced"
	OrderStatusChanged  = "order.status_changed"
	TableReleased       = "table.released"
	ReservationAssigned = "reservation.assigned"
)

// Event is the JSON payload of a published message. It carries enough to
// route and log the change without reading the database.
type Event struct {
	Type             string    `json:"type"`
	OrderID          int64     `json:"order_id,omitempty"`
	TableID          int64     `json:"table_id,omitempty"`
	ReservationID    int64     `json:"reservation_id,omitempty"`
	Status           string    `json:"status,omitempty"`
	PreviousStatus   string    `json:"previous_status,omitempty"`
	TotalAmount      string    `json:"total_amount,omitempty"`
	CascadedOrderIDs []int64   `json:"cascaded_order_ids,omitempty"`
	ActorID          uuid.UUID `json:"actor_id"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Publisher delivers events. Callers treat failures as non-fatal: the state
// change the event describes has already been committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
