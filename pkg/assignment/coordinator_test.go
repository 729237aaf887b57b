package assignment

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaishnaviprints/printlogic/pkg/database"
	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
	"github.com/vaishnaviprints/printlogic/pkg/events"
	"github.com/vaishnaviprints/printlogic/pkg/models"
	"github.com/vaishnaviprints/printlogic/pkg/scheduler"
)

type fakeNotifier struct {
	mu     sync.Mutex
	offers []events.EventOrderOffered
}

func (f *fakeNotifier) OfferOrder(ctx context.Context, vendorId string, offer events.EventOrderOffered) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, offer)
	return nil
}

func (f *fakeNotifier) Offers() []events.EventOrderOffered {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.EventOrderOffered(nil), f.offers...)
}

type fakeSink struct {
	mu    sync.Mutex
	types []events.EventType
}

func (f *fakeSink) SaveOutboxEvent(ctx context.Context, raw []byte) error {
	var env events.EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, env.Metadata.Type)
	return nil
}

func (f *fakeSink) Types() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.EventType(nil), f.types...)
}

// Three vendors around MG Road, Bengaluru, in increasing distance order.
var (
	customerLoc = models.Location{Latitude: 12.9716, Longitude: 77.5946, City: "Bengaluru"}

	vendorNear = models.Vendor{
		VendorId: "v-near", Name: "Quick Prints", Badge: models.BADGE_NONE,
		Location:  models.Location{Latitude: 12.9750, Longitude: 77.5950},
		StoreOpen: true, IsActive: true,
	}
	vendorMid = models.Vendor{
		VendorId: "v-mid", Name: "City Press", Badge: models.BADGE_NONE,
		Location:  models.Location{Latitude: 12.9900, Longitude: 77.6000},
		StoreOpen: true, IsActive: true,
	}
	vendorFar = models.Vendor{
		VendorId: "v-far", Name: "Metro Copy", Badge: models.BADGE_NONE,
		Location:  models.Location{Latitude: 13.0200, Longitude: 77.6200},
		StoreOpen: true, IsActive: true,
	}
)

func testRule() models.PriceRule {
	return models.PriceRule{
		RuleId:        "rule-1",
		Active:        true,
		EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Delivery:      models.DeliveryCharge{BaseRate: 20, PerKmRate: 0},
		CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testOrder() models.Order {
	loc := customerLoc
	return models.Order{
		OrderId:          "order-1",
		CustomerName:     "Asha",
		FulfillmentType:  models.FULFILLMENT_DELIVERY,
		CustomerLocation: &loc,
		Items: []models.OrderItem{
			{FileName: "thesis.pdf", NumPages: 10, NumCopies: 1, PaperTypeId: "a4_75"},
			{FileName: "annex.pdf", NumPages: 2, NumCopies: 1, PaperTypeId: "a4_75"},
		},
		ItemsTotal:     100,
		DeliveryCharge: 45,
		Total:          145,
		Status:         models.ORDER_STATUS_PAID,
		Pricing:        models.PricingSnapshot{AppliedRuleId: "rule-1", Rule: testRule()},
		Assignment:     models.AssignmentState{Status: models.ASSIGNMENT_STATUS_UNASSIGNED},
		CreatedAt:      time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func newTestRig(t *testing.T, vendors ...models.Vendor) (*Coordinator, *database.MemoryStore, *fakeNotifier, *fakeSink) {
	t.Helper()
	ctx := context.Background()

	store := database.NewMemoryStore()
	require.NoError(t, store.SaveOrder(ctx, testOrder()))
	for _, vendor := range vendors {
		require.NoError(t, store.SaveVendor(ctx, vendor))
	}

	timers := scheduler.NewQueue[TimerItem](16)
	t.Cleanup(timers.Close)

	notifier := &fakeNotifier{}
	sink := &fakeSink{}
	coord := NewCoordinator(store, timers, notifier, sink)
	return coord, store, notifier, sink
}

func paidEvent(orderId string) events.EventOrderPaid {
	return events.EventOrderPaid{
		Metadata: events.Metadata{Type: events.EvtTypeOrderPaid, OrderId: orderId},
	}
}

func TestOrderPaidOffersNearestVendor(t *testing.T) {
	ctx := context.Background()
	coord, store, notifier, sink := newTestRig(t, vendorNear, vendorMid, vendorFar)

	require.NoError(t, coord.HandleOrderPaid(ctx, paidEvent("order-1")))

	order, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ASSIGNMENT_STATUS_PENDING, order.Assignment.Status)
	assert.Equal(t, "v-near", order.Assignment.CandidateVendorId)
	assert.Equal(t, []string{"v-near"}, order.Assignment.AttemptedVendorIds)
	assert.False(t, order.Assignment.TimeoutAt.IsZero())

	vendor, err := store.GetVendor(ctx, "v-near")
	require.NoError(t, err)
	assert.Equal(t, int64(1), vendor.CurrentWorkload)

	offers := notifier.Offers()
	require.Len(t, offers, 1)
	assert.Equal(t, "v-near", offers[0].VendorId)
	assert.Equal(t, "2 file(s) - 12 pages", offers[0].Summary)
	assert.Equal(t, 2, offers[0].TimeoutMinutes)

	assert.Contains(t, sink.Types(), events.EvtTypeAssignmentPending)
}

func TestAcceptAssignsAndRecomputesDelivery(t *testing.T) {
	ctx := context.Background()
	coord, store, _, sink := newTestRig(t, vendorNear, vendorMid)

	require.NoError(t, coord.HandleOrderPaid(ctx, paidEvent("order-1")))
	require.NoError(t, coord.VendorRespond(ctx, models.VendorResponse{
		OrderId: "order-1", VendorId: "v-near", Decision: models.DECISION_ACCEPT,
	}))

	order, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ORDER_STATUS_ASSIGNED, order.Status)
	assert.Equal(t, models.ASSIGNMENT_STATUS_ACCEPTED, order.Assignment.Status)
	assert.Equal(t, "v-near", order.Assignment.CandidateVendorId)

	// snapshot rule charges a flat base rate, replacing the provisional 45
	assert.Equal(t, 20.0, order.DeliveryCharge)
	assert.Equal(t, 120.0, order.Total)

	// accepted vendor keeps the workload slot until completion
	vendor, err := store.GetVendor(ctx, "v-near")
	require.NoError(t, err)
	assert.Equal(t, int64(1), vendor.CurrentWorkload)

	// the acceptance disarmed the timer
	assert.False(t, coord.Timers.Cancel("order-1"))

	assert.Contains(t, sink.Types(), events.EvtTypeAssignmentAccepted)
}

func TestTimeoutMovesToNextCandidate(t *testing.T) {
	ctx := context.Background()
	coord, store, notifier, _ := newTestRig(t, vendorNear, vendorMid, vendorFar)

	require.NoError(t, coord.HandleOrderPaid(ctx, paidEvent("order-1")))
	require.NoError(t, coord.HandleTimeout(ctx, TimerItem{OrderId: "order-1", VendorId: "v-near"}))

	order, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ASSIGNMENT_STATUS_PENDING, order.Assignment.Status)
	assert.Equal(t, "v-mid", order.Assignment.CandidateVendorId)
	assert.Equal(t, 1, order.Assignment.ReassignmentAttempts)
	assert.Equal(t, []string{"v-near", "v-mid"}, order.Assignment.AttemptedVendorIds)

	// timed-out vendor released its slot
	near, err := store.GetVendor(ctx, "v-near")
	require.NoError(t, err)
	assert.Equal(t, int64(0), near.CurrentWorkload)

	require.Len(t, notifier.Offers(), 2)
}

func TestLateAcceptAfterTimeoutRejected(t *testing.T) {
	ctx := context.Background()
	coord, store, _, _ := newTestRig(t, vendorNear, vendorMid)

	require.NoError(t, coord.HandleOrderPaid(ctx, paidEvent("order-1")))
	require.NoError(t, coord.HandleTimeout(ctx, TimerItem{OrderId: "order-1", VendorId: "v-near"}))

	err := coord.VendorRespond(ctx, models.VendorResponse{
		OrderId: "order-1", VendorId: "v-near", Decision: models.DECISION_ACCEPT,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, svcerror.ErrInvalidTransition)

	// the reassignment to the next vendor stands
	order, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "v-mid", order.Assignment.CandidateVendorId)
}

func TestExhaustedAttemptsParkManual(t *testing.T) {
	ctx := context.Background()
	coord, store, _, sink := newTestRig(t, vendorNear, vendorMid, vendorFar)

	require.NoError(t, coord.HandleOrderPaid(ctx, paidEvent("order-1")))
	for _, vendorId := range []string{"v-near", "v-mid", "v-far"} {
		require.NoError(t, coord.HandleTimeout(ctx, TimerItem{OrderId: "order-1", VendorId: vendorId}))
	}

	order, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ASSIGNMENT_STATUS_MANUAL_REQUIRED, order.Assignment.Status)
	assert.Empty(t, order.Assignment.CandidateVendorId)
	assert.Equal(t, 3, order.Assignment.ReassignmentAttempts)

	// every assignment episode ended net zero
	for _, vendorId := range []string{"v-near", "v-mid", "v-far"} {
		vendor, err := store.GetVendor(ctx, vendorId)
		require.NoError(t, err)
		assert.Equal(t, int64(0), vendor.CurrentWorkload, vendorId)
	}

	assert.Contains(t, sink.Types(), events.EvtTypeManualAssignRequired)

	parked, err := store.ListManualRequired(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, "order-1", parked[0].OrderId)
}

func TestDeclineConsumesAttemptAndReassigns(t *testing.T) {
	ctx := context.Background()
	coord, store, _, sink := newTestRig(t, vendorNear, vendorMid)

	require.NoError(t, coord.HandleOrderPaid(ctx, paidEvent("order-1")))
	require.NoError(t, coord.VendorRespond(ctx, models.VendorResponse{
		OrderId: "order-1", VendorId: "v-near",
		Decision: models.DECISION_DECLINE, Reason: "printer down",
	}))

	order, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ASSIGNMENT_STATUS_PENDING, order.Assignment.Status)
	assert.Equal(t, "v-mid", order.Assignment.CandidateVendorId)
	assert.Equal(t, 1, order.Assignment.ReassignmentAttempts)
	assert.Equal(t, "printer down", order.Assignment.DeclineReason)

	near, err := store.GetVendor(ctx, "v-near")
	require.NoError(t, err)
	assert.Equal(t, int64(0), near.CurrentWorkload)

	// a decline is not a timeout and downstream consumers see the difference
	assert.Contains(t, sink.Types(), events.EvtTypeAssignmentDeclined)
	assert.NotContains(t, sink.Types(), events.EvtTypeAssignmentTimedOut)
}

func TestStaleTimerNoOps(t *testing.T) {
	ctx := context.Background()
	coord, store, _, _ := newTestRig(t, vendorNear, vendorMid)

	require.NoError(t, coord.HandleOrderPaid(ctx, paidEvent("order-1")))
	require.NoError(t, coord.VendorRespond(ctx, models.VendorResponse{
		OrderId: "order-1", VendorId: "v-near", Decision: models.DECISION_ACCEPT,
	}))

	// a timer that lost the race against the accept
	require.NoError(t, coord.HandleTimeout(ctx, TimerItem{OrderId: "order-1", VendorId: "v-near"}))

	order, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ASSIGNMENT_STATUS_ACCEPTED, order.Assignment.Status)
	assert.Equal(t, "v-near", order.Assignment.CandidateVendorId)
	assert.Equal(t, 0, order.Assignment.ReassignmentAttempts)
}

func TestCancelReleasesPendingVendor(t *testing.T) {
	ctx := context.Background()
	coord, store, _, _ := newTestRig(t, vendorNear)

	require.NoError(t, coord.HandleOrderPaid(ctx, paidEvent("order-1")))
	require.NoError(t, coord.HandleOrderCancelled(ctx, events.EventOrderCancelled{
		Metadata: events.Metadata{Type: events.EvtTypeOrderCancelled, OrderId: "order-1"},
		Reason:   "customer changed mind",
	}))

	order, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ORDER_STATUS_CANCELLED, order.Status)
	assert.Equal(t, models.ASSIGNMENT_STATUS_UNASSIGNED, order.Assignment.Status)

	near, err := store.GetVendor(ctx, "v-near")
	require.NoError(t, err)
	assert.Equal(t, int64(0), near.CurrentWorkload)

	// a fired timer after the cancel does nothing
	require.NoError(t, coord.HandleTimeout(ctx, TimerItem{OrderId: "order-1", VendorId: "v-near"}))
	order, err = store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ORDER_STATUS_CANCELLED, order.Status)
}

func TestManualAssignReentersPendingFlow(t *testing.T) {
	ctx := context.Background()
	coord, store, notifier, _ := newTestRig(t, vendorNear, vendorFar)

	require.NoError(t, store.MarkManualRequired(ctx, "order-1", coord.Now()))
	require.NoError(t, coord.ManualAssign(ctx, "order-1", "v-far"))

	order, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ASSIGNMENT_STATUS_PENDING, order.Assignment.Status)
	assert.Equal(t, "v-far", order.Assignment.CandidateVendorId)

	offers := notifier.Offers()
	require.Len(t, offers, 1)
	assert.Equal(t, "v-far", offers[0].VendorId)
}

func TestManualAssignRejectedWhilePending(t *testing.T) {
	ctx := context.Background()
	coord, _, _, _ := newTestRig(t, vendorNear, vendorFar)

	require.NoError(t, coord.HandleOrderPaid(ctx, paidEvent("order-1")))

	err := coord.ManualAssign(ctx, "order-1", "v-far")
	require.Error(t, err)
	assert.ErrorIs(t, err, svcerror.ErrInvalidTransition)
}

func TestCompleteReleasesWorkloadSlot(t *testing.T) {
	ctx := context.Background()
	coord, store, _, _ := newTestRig(t, vendorNear)

	require.NoError(t, coord.HandleOrderPaid(ctx, paidEvent("order-1")))
	require.NoError(t, coord.VendorRespond(ctx, models.VendorResponse{
		OrderId: "order-1", VendorId: "v-near", Decision: models.DECISION_ACCEPT,
	}))
	require.NoError(t, coord.StartProduction(ctx, "order-1", "v-near"))
	require.NoError(t, coord.CompleteOrder(ctx, "order-1", "v-near"))

	order, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ORDER_STATUS_READY_FOR_DELIVERY, order.Status)

	near, err := store.GetVendor(ctx, "v-near")
	require.NoError(t, err)
	assert.Equal(t, int64(0), near.CurrentWorkload)
}

func TestNoEligibleVendorParksManual(t *testing.T) {
	ctx := context.Background()
	// the only vendor is closed, so ranking filters it out
	closed := vendorNear
	closed.StoreOpen = false
	coord, store, _, _ := newTestRig(t, closed)

	require.NoError(t, coord.HandleOrderPaid(ctx, paidEvent("order-1")))

	order, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ASSIGNMENT_STATUS_MANUAL_REQUIRED, order.Assignment.Status)
}
