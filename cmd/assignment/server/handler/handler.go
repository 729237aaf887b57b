package handler

import (
	"context"
	"time"

	"github.com/vaishnaviprints/printlogic/pkg/assignment"
	"github.com/vaishnaviprints/printlogic/pkg/events"
	"github.com/vaishnaviprints/printlogic/pkg/kafka"
	"github.com/vaishnaviprints/printlogic/pkg/models"
)

const handleTimeout = 10 * time.Second

// Handler routes consumed events into the assignment coordinator.
type Handler struct {
	Coordinator *assignment.Coordinator
	Dispatcher  *events.Dispatcher
}

func NewHandler(coord *assignment.Coordinator) *Handler {
	h := &Handler{
		Coordinator: coord,
		Dispatcher:  events.NewDispatcher(),
	}

	events.Register(h.Dispatcher, events.EvtTypeOrderPaid, h.OnOrderPaid)
	events.Register(h.Dispatcher, events.EvtTypeOrderCancelled, h.OnOrderCancelled)
	events.Register(h.Dispatcher, events.EvtTypeVendorResponded, h.OnVendorResponded)
	events.Register(h.Dispatcher, events.EvtTypeManualAssignRequested, h.OnManualAssign)

	return h
}

func (h *Handler) HandleMessage(ctx context.Context, message kafka.KafkaMessage) error {
	return h.Dispatcher.Dispatch(message.Value)
}

func (h *Handler) OnOrderPaid(evt events.EventOrderPaid) error {
	ctx, done := context.WithTimeout(context.Background(), handleTimeout)
	defer done()

	return h.Coordinator.HandleOrderPaid(ctx, evt)
}

func (h *Handler) OnOrderCancelled(evt events.EventOrderCancelled) error {
	ctx, done := context.WithTimeout(context.Background(), handleTimeout)
	defer done()

	return h.Coordinator.HandleOrderCancelled(ctx, evt)
}

func (h *Handler) OnVendorResponded(evt events.EventVendorResponded) error {
	ctx, done := context.WithTimeout(context.Background(), handleTimeout)
	defer done()

	return h.Coordinator.VendorRespond(ctx, models.VendorResponse{
		OrderId:  evt.Metadata.OrderId,
		VendorId: evt.VendorId,
		Decision: evt.Decision,
		Reason:   evt.Reason,
	})
}

func (h *Handler) OnManualAssign(evt events.EventManualAssign) error {
	ctx, done := context.WithTimeout(context.Background(), handleTimeout)
	defer done()

	return h.Coordinator.ManualAssign(ctx, evt.Metadata.OrderId, evt.VendorId)
}
