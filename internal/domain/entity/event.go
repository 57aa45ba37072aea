package entity

import (
	"time"

	"github.com/google/uuid"
)

type CartEventType string

const (
	EventItemAdded       CartEventType = "item_added"
	EventQuantityUpdated CartEventType = "quantity_updated"
	EventItemRemoved     CartEventType = "item_removed"
	EventCartCleared     CartEventType = "cleared"
)

// CartEvent is published after a cart mutation has committed.
type CartEvent struct {
	ID            string        `json:"id"`
	Type          CartEventType `json:"type"`
	CartKey       string        `json:"cart_key"`
	ProductID     string        `json:"product_id,omitempty"`
	Variant       []string      `json:"variant,omitempty"`
	Quantity      int           `json:"quantity,omitempty"`
	LineQuantity  int           `json:"line_quantity"`
	TotalQuantity int           `json:"total_quantity"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func NewCartEvent(eventType CartEventType, cart *Cart) CartEvent {
	ev := CartEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
	if cart != nil {
		ev.CartKey = cart.Key
		ev.TotalQuantity = cart.TotalQuantity()
	}
	return ev
}

func (e CartEvent) Subject() string {
	return "cart.events." + string(e.Type)
}
