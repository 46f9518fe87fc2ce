package delivery

import (
	"context"

	"autorunner/internal/eventbus"
	"autorunner/internal/model"
)

// webDeliveryData is the payload published for a "web" target delivery —
// the web UI has no separate transport of its own, so delivery to it means
// publishing onto the run's existing EventBus stream (spec §6.2's
// `/api/flows/<run_id>/events` SSE surface is the only channel a web client
// listens on).
type webDeliveryData struct {
	OutboxID    string             `json:"outbox_id"`
	Text        string             `json:"text"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
}

// WebAdapter delivers "web" targets by publishing onto the EventBus.
type WebAdapter struct {
	bus *eventbus.Bus
}

// NewWebAdapter returns a WebAdapter publishing onto bus.
func NewWebAdapter(bus *eventbus.Bus) *WebAdapter {
	return &WebAdapter{bus: bus}
}

// Deliver publishes one EventPMADelivery event tagged with the run id
// carried on ctx (see WithRunID); it never fails since the bus itself
// never blocks or errors on publish (spec §4.D).
func (a *WebAdapter) Deliver(ctx context.Context, _ model.DeliveryTarget, outboxID, chunk string, attachments []model.Attachment) error {
	a.bus.Publish(eventbus.Event{
		Type:  eventbus.EventPMADelivery,
		RunID: RunIDFromContext(ctx),
		Data:  webDeliveryData{OutboxID: outboxID, Text: chunk, Attachments: attachments},
	})
	return nil
}
