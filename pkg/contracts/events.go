package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	EventID   string         `json:"event_id"`
	OrderID   string         `json:"order_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

const (
	EventUploadReceived  = "upload.received"
	EventOrderCreated    = "order.created"
	EventPaymentCaptured = "payment.captured"
)

func NewEvent(typ, orderID string, payload map[string]any) Event {
	return Event{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		CreatedAt: time.Now().UTC(),
		Type:      typ,
		Payload:   payload,
	}
}

// Publisher delivers storefront events. Delivery is best-effort: callers log
// the error and carry on.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
