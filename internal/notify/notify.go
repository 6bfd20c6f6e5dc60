// Package notify turns storefront events into shop-owner notifications,
// recording each event once.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/drezzillah-prog/velvet-charms/pkg/contracts"
	"github.com/drezzillah-prog/velvet-charms/pkg/logging"
)

const service = "notification-service"

var ErrNoEventID = errors.New("event has no event_id")

// Inbox remembers which events were already handled. Save reports false when
// the event id was seen before.
type Inbox interface {
	Save(ctx context.Context, evt contracts.Event, message string) (bool, error)
}

type Consumer struct {
	inbox Inbox
}

func NewConsumer(inbox Inbox) *Consumer {
	return &Consumer{inbox: inbox}
}

// Handle processes one raw message. Duplicates are acknowledged without a
// second notification. Decode failures are returned so the caller can skip
// the message.
func (c *Consumer) Handle(ctx context.Context, raw []byte) error {
	var evt contracts.Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if evt.EventID == "" {
		return ErrNoEventID
	}
	msg := Message(evt)
	fresh, err := c.inbox.Save(ctx, evt, msg)
	if err != nil {
		return fmt.Errorf("save notification %s: %w", evt.EventID, err)
	}
	status := "emitted"
	if !fresh {
		status = "duplicate"
	}
	logging.Log(logging.Fields{Service: service, OrderID: evt.OrderID, EventID: evt.EventID, Step: evt.Type, Status: status, Message: msg})
	return nil
}

// Message renders the human-readable line for an event.
func Message(evt contracts.Event) string {
	p := evt.Payload
	switch evt.Type {
	case contracts.EventOrderCreated:
		return fmt.Sprintf("New order %s: %v %v (%v items)", evt.OrderID, p["total"], p["currency"], p["items"])
	case contracts.EventPaymentCaptured:
		return fmt.Sprintf("Payment captured for order %s (capture %v, %v)", evt.OrderID, p["capture_id"], p["status"])
	case contracts.EventUploadReceived:
		if file, ok := p["file"].(map[string]any); ok {
			return fmt.Sprintf("Custom order request with attachment %v", file["originalName"])
		}
		return "Custom order request received"
	default:
		return "Event " + evt.Type
	}
}
