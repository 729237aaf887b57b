package assignment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vaishnaviprints/printlogic/pkg/database"
	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
	"github.com/vaishnaviprints/printlogic/pkg/events"
	"github.com/vaishnaviprints/printlogic/pkg/geo"
	"github.com/vaishnaviprints/printlogic/pkg/models"
	"github.com/vaishnaviprints/printlogic/pkg/notify"
	"github.com/vaishnaviprints/printlogic/pkg/pricing"
	"github.com/vaishnaviprints/printlogic/pkg/ranking"
	"github.com/vaishnaviprints/printlogic/pkg/scheduler"
	"github.com/vaishnaviprints/printlogic/pkg/utils"
)

const (
	// AcceptTimeout is the vendor acceptance window per attempt.
	AcceptTimeout = 2 * time.Minute

	// MaxReassignmentAttempts caps consumed attempts (timeout or decline)
	// before the order is parked for manual assignment.
	MaxReassignmentAttempts = 3

	// DefaultMatchRadiusKm bounds the candidate search around the customer.
	DefaultMatchRadiusKm = 10.0
)

// TimerItem is the delay-queue payload for one acceptance window.
type TimerItem struct {
	OrderId  string
	VendorId string
}

// EventSink receives serialized domain events for eventual publication.
// The outbox relay implements it; tests substitute a recorder.
type EventSink interface {
	SaveOutboxEvent(ctx context.Context, raw []byte) error
}

// Coordinator drives the vendor assignment workflow: rank candidates, offer
// tentatively, arm the acceptance timer, and on timeout or decline move to
// the next candidate until attempts run out.
type Coordinator struct {
	Store       database.Store
	Timers      *scheduler.DelayQueue[TimerItem]
	Notifier    notify.Notifier
	Sink        EventSink
	Timeout     time.Duration
	MaxAttempts int
	RadiusKm    float64
	Now         func() time.Time
}

func NewCoordinator(store database.Store, timers *scheduler.DelayQueue[TimerItem], notifier notify.Notifier, sink EventSink) *Coordinator {
	return &Coordinator{
		Store:       store,
		Timers:      timers,
		Notifier:    notifier,
		Sink:        sink,
		Timeout:     utils.GetEnvDuration("ACCEPT_TIMEOUT", AcceptTimeout),
		MaxAttempts: utils.GetEnvInt("MAX_REASSIGNMENT_ATTEMPTS", MaxReassignmentAttempts),
		RadiusKm:    DefaultMatchRadiusKm,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleOrderPaid starts the assignment workflow for a freshly paid order.
func (c *Coordinator) HandleOrderPaid(ctx context.Context, evt events.EventOrderPaid) error {
	op := "Coordinator.HandleOrderPaid"

	order, err := c.Store.GetOrder(ctx, evt.Metadata.OrderId)
	if err != nil {
		return svcerror.AddOp(err, op)
	}
	if order.Status != models.ORDER_STATUS_PAID {
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp(op),
			svcerror.WithMsg(fmt.Sprintf("order %s is %s, expected %s", order.OrderId, order.Status, models.ORDER_STATUS_PAID)),
		)
	}

	return c.offerNext(ctx, order)
}

// HandleOrderCancelled disarms the pending timer and releases the tentative
// vendor, if any.
func (c *Coordinator) HandleOrderCancelled(ctx context.Context, evt events.EventOrderCancelled) error {
	c.Timers.Cancel(evt.Metadata.OrderId)
	if err := c.Store.ReleaseCancelled(ctx, evt.Metadata.OrderId, evt.Reason, c.Now()); err != nil {
		return svcerror.AddOp(err, "Coordinator.HandleOrderCancelled")
	}
	return nil
}

// VendorRespond applies an accept or decline from the candidate vendor.
// Racing against the timeout is resolved by the store transition: whichever
// side commits first wins, the loser becomes a no-op or a conflict.
func (c *Coordinator) VendorRespond(ctx context.Context, resp models.VendorResponse) error {
	op := "Coordinator.VendorRespond"

	switch resp.Decision {
	case models.DECISION_ACCEPT:
		return c.accept(ctx, resp.OrderId, resp.VendorId)
	case models.DECISION_DECLINE:
		return c.decline(ctx, resp.OrderId, resp.VendorId, resp.Reason)
	default:
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp(op),
			svcerror.WithMsg(fmt.Sprintf("unknown decision %q", resp.Decision)),
		)
	}
}

func (c *Coordinator) accept(ctx context.Context, orderId, vendorId string) error {
	op := "Coordinator.Accept"
	now := c.Now()

	if err := c.Store.AcceptAssignment(ctx, orderId, vendorId, now); err != nil {
		return svcerror.AddOp(err, op)
	}
	c.Timers.Cancel(orderId)

	order, err := c.Store.GetOrder(ctx, orderId)
	if err != nil {
		return svcerror.AddOp(err, op)
	}

	if err := c.recomputeDelivery(ctx, order, vendorId); err != nil {
		// order stays assigned even when the recompute fails
		log.Printf("[COORDINATOR] Delivery recompute failed for order %s: %v", orderId, err)
	}

	c.emit(ctx, events.EvtTypeAssignmentAccepted, order, vendorId, "")
	log.Printf("[COORDINATOR] Order %s accepted by vendor %s", orderId, vendorId)
	return nil
}

// recomputeDelivery replaces the provisional delivery charge with one
// computed from the snapshotted rule and the real vendor distance.
func (c *Coordinator) recomputeDelivery(ctx context.Context, order models.Order, vendorId string) error {
	if order.FulfillmentType != models.FULFILLMENT_DELIVERY || order.CustomerLocation == nil {
		return nil
	}

	vendor, err := c.Store.GetVendor(ctx, vendorId)
	if err != nil {
		return err
	}

	distance := geo.DistanceKm(
		vendor.Location.Latitude, vendor.Location.Longitude,
		order.CustomerLocation.Latitude, order.CustomerLocation.Longitude,
	)
	charge := pricing.DeliveryChargeFor(order.Pricing.Rule, order.FulfillmentType, order.ItemsTotal, distance)
	charge = geo.Round2(charge)
	total := geo.Round2(order.ItemsTotal + charge)

	return c.Store.UpdateOrderTotals(ctx, order.OrderId, charge, total)
}

func (c *Coordinator) decline(ctx context.Context, orderId, vendorId, reason string) error {
	op := "Coordinator.Decline"

	order, err := c.Store.DeclineAssignment(ctx, orderId, vendorId, reason, c.Now())
	if err != nil {
		return svcerror.AddOp(err, op)
	}
	c.Timers.Cancel(orderId)

	c.emit(ctx, events.EvtTypeAssignmentDeclined, order, vendorId, reason)
	log.Printf("[COORDINATOR] Order %s declined by vendor %s (attempt %d): %s",
		orderId, vendorId, order.Assignment.ReassignmentAttempts, reason)

	return c.offerNext(ctx, order)
}

// HandleTimeout fires when an acceptance window elapses. A stale timer,
// one whose order already moved on, no-ops.
func (c *Coordinator) HandleTimeout(ctx context.Context, item TimerItem) error {
	op := "Coordinator.HandleTimeout"

	order, applied, err := c.Store.ExpireAssignment(ctx, item.OrderId, item.VendorId, c.Now())
	if err != nil {
		return svcerror.AddOp(err, op)
	}
	if !applied {
		log.Printf("[COORDINATOR] Stale timer for order %s vendor %s, ignoring", item.OrderId, item.VendorId)
		return nil
	}

	c.emit(ctx, events.EvtTypeAssignmentTimedOut, order, item.VendorId, "acceptance window elapsed")
	log.Printf("[COORDINATOR] Order %s timed out on vendor %s (attempt %d)",
		item.OrderId, item.VendorId, order.Assignment.ReassignmentAttempts)

	return c.offerNext(ctx, order)
}

// RunTimeouts drains fired acceptance timers until the context ends.
func (c *Coordinator) RunTimeouts(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-c.Timers.Out():
			if !ok {
				return nil
			}
			if err := c.HandleTimeout(ctx, item.Value); err != nil {
				log.Printf("[COORDINATOR] Timeout handling failed for order %s: %v", item.Value.OrderId, err)
			}
		}
	}
}

// offerNext picks the best untried candidate and offers tentatively. With
// attempts exhausted or no candidate left, the order is parked for manual
// assignment.
func (c *Coordinator) offerNext(ctx context.Context, order models.Order) error {
	op := "Coordinator.OfferNext"

	if order.Assignment.ReassignmentAttempts >= c.MaxAttempts {
		return c.parkManual(ctx, order.OrderId, "reassignment attempts exhausted")
	}
	if order.CustomerLocation == nil {
		return c.parkManual(ctx, order.OrderId, "no customer location for matching")
	}

	vendors, err := c.Store.ListVendors(ctx)
	if err != nil {
		return svcerror.AddOp(err, op)
	}

	candidates := ranking.RankCandidates(*order.CustomerLocation, vendors, c.RadiusKm)
	for _, candidate := range candidates {
		if order.Assignment.Tried(candidate.Vendor.VendorId) {
			continue
		}
		return c.offer(ctx, order, candidate.Vendor)
	}

	return c.parkManual(ctx, order.OrderId, "no eligible vendor in radius")
}

func (c *Coordinator) offer(ctx context.Context, order models.Order, vendor models.Vendor) error {
	op := "Coordinator.Offer"
	now := c.Now()
	timeoutAt := now.Add(c.Timeout)

	if err := c.Store.TentativelyAssign(ctx, order.OrderId, vendor.VendorId, now, timeoutAt); err != nil {
		return svcerror.AddOp(err, op)
	}
	if err := c.Timers.Schedule(order.OrderId, TimerItem{OrderId: order.OrderId, VendorId: vendor.VendorId}, timeoutAt); err != nil {
		return svcerror.AddOp(err, op)
	}

	offered, err := c.Store.GetOrder(ctx, order.OrderId)
	if err != nil {
		return svcerror.AddOp(err, op)
	}
	c.emit(ctx, events.EvtTypeAssignmentPending, offered, vendor.VendorId, "")

	offer := notify.NewOffer(
		order.OrderId, vendor.VendorId,
		fmt.Sprintf("%d file(s) - %d pages", len(order.Items), order.TotalPages()),
		fmt.Sprintf("%.2f", order.Total),
		order.CreatedAt, c.Timeout,
	)
	if err := c.Notifier.OfferOrder(ctx, vendor.VendorId, offer); err != nil {
		// best effort, the acceptance window runs regardless
		log.Printf("[COORDINATOR] Offer notification failed for vendor %s: %v", vendor.VendorId, err)
	}

	log.Printf("[COORDINATOR] Order %s offered to vendor %s until %s",
		order.OrderId, vendor.VendorId, timeoutAt.Format(time.RFC3339))
	return nil
}

func (c *Coordinator) parkManual(ctx context.Context, orderId, reason string) error {
	op := "Coordinator.ParkManual"

	if err := c.Store.MarkManualRequired(ctx, orderId, c.Now()); err != nil {
		return svcerror.AddOp(err, op)
	}

	order, err := c.Store.GetOrder(ctx, orderId)
	if err != nil {
		return svcerror.AddOp(err, op)
	}
	c.emit(ctx, events.EvtTypeManualAssignRequired, order, "", reason)
	log.Printf("[COORDINATOR] Order %s parked for manual assignment: %s", orderId, reason)
	return nil
}

// ManualAssign lets an operator hand a parked order to a chosen vendor. The
// order re-enters the normal pending flow, acceptance window included.
func (c *Coordinator) ManualAssign(ctx context.Context, orderId, vendorId string) error {
	op := "Coordinator.ManualAssign"

	order, err := c.Store.GetOrder(ctx, orderId)
	if err != nil {
		return svcerror.AddOp(err, op)
	}
	switch order.Assignment.Status {
	case models.ASSIGNMENT_STATUS_MANUAL_REQUIRED, models.ASSIGNMENT_STATUS_TIMED_OUT, models.ASSIGNMENT_STATUS_UNASSIGNED:
	default:
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp(op),
			svcerror.WithMsg(fmt.Sprintf("order %s assignment is %s", orderId, order.Assignment.Status)),
		)
	}

	vendor, err := c.Store.GetVendor(ctx, vendorId)
	if err != nil {
		return svcerror.AddOp(err, op)
	}

	return c.offer(ctx, order, vendor)
}

// StartProduction moves an accepted order into production, by the accepted
// vendor only.
func (c *Coordinator) StartProduction(ctx context.Context, orderId, vendorId string) error {
	op := "Coordinator.StartProduction"

	order, err := c.Store.GetOrder(ctx, orderId)
	if err != nil {
		return svcerror.AddOp(err, op)
	}
	if order.Status != models.ORDER_STATUS_ASSIGNED || order.Assignment.CandidateVendorId != vendorId {
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp(op),
			svcerror.WithMsg(fmt.Sprintf("order %s is %s for vendor %s", orderId, order.Status, order.Assignment.CandidateVendorId)),
		)
	}

	change := models.StatusChange{
		Status: models.ORDER_STATUS_IN_PRODUCTION,
		By:     vendorId,
		Note:   "Production started",
		At:     c.Now(),
	}
	if err := c.Store.UpdateOrderStatus(ctx, orderId, models.ORDER_STATUS_IN_PRODUCTION, change); err != nil {
		return svcerror.AddOp(err, op)
	}
	return nil
}

// CompleteOrder marks production done and releases the vendor workload slot
// taken at tentative assignment, closing the episode at net zero.
func (c *Coordinator) CompleteOrder(ctx context.Context, orderId, vendorId string) error {
	op := "Coordinator.CompleteOrder"

	order, err := c.Store.GetOrder(ctx, orderId)
	if err != nil {
		return svcerror.AddOp(err, op)
	}
	if order.Status != models.ORDER_STATUS_IN_PRODUCTION || order.Assignment.CandidateVendorId != vendorId {
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp(op),
			svcerror.WithMsg(fmt.Sprintf("order %s is %s for vendor %s", orderId, order.Status, order.Assignment.CandidateVendorId)),
		)
	}

	next := models.ORDER_STATUS_READY_FOR_PICKUP
	if order.FulfillmentType == models.FULFILLMENT_DELIVERY {
		next = models.ORDER_STATUS_READY_FOR_DELIVERY
	}
	change := models.StatusChange{
		Status: next,
		By:     vendorId,
		Note:   "Production complete",
		At:     c.Now(),
	}
	if err := c.Store.UpdateOrderStatus(ctx, orderId, next, change); err != nil {
		return svcerror.AddOp(err, op)
	}
	if err := c.Store.AdjustVendorWorkload(ctx, vendorId, -1); err != nil {
		return svcerror.AddOp(err, op)
	}
	return nil
}

func (c *Coordinator) emit(ctx context.Context, evtType events.EventType, order models.Order, vendorId, reason string) {
	evt := events.EventAssignmentChanged{
		Metadata: events.Metadata{
			MessageId: uuid.NewString(),
			Type:      evtType,
			OrderId:   order.OrderId,
			Timestamp: c.Now(),
			Producer:  events.ProducerAssignmentSvc,
		},
		VendorId: vendorId,
		Status:   order.Assignment.Status,
		Attempts: order.Assignment.ReassignmentAttempts,
		Reason:   reason,
	}

	raw, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[COORDINATOR] Failed to marshal %s event for order %s: %v", evtType, order.OrderId, err)
		return
	}
	if err := c.Sink.SaveOutboxEvent(ctx, raw); err != nil {
		log.Printf("[COORDINATOR] Failed to save %s event for order %s: %v", evtType, order.OrderId, err)
	}
}
