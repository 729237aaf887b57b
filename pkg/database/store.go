package database

import (
	"context"
	"time"

	"github.com/vaishnaviprints/printlogic/pkg/models"
)

// Store is the order record store the coordinator and gateway work against.
// Assignment transitions mutate order state and the vendor workload counter
// as a single atomic unit, compare-and-set on the expected prior state, so a
// racing accept and timeout cannot both win and retries are idempotent.
type Store interface {
	SaveOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, orderId string) (models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderId string, status models.OrderStatus, change models.StatusChange) error
	UpdateOrderTotals(ctx context.Context, orderId string, deliveryCharge, total float64) error
	ListManualRequired(ctx context.Context) ([]models.Order, error)

	SaveVendor(ctx context.Context, vendor models.Vendor) error
	GetVendor(ctx context.Context, vendorId string) (models.Vendor, error)
	ListVendors(ctx context.Context) ([]models.Vendor, error)
	AdjustVendorWorkload(ctx context.Context, vendorId string, delta int64) error

	// TentativelyAssign moves the order into PENDING for the vendor,
	// records the attempt, and increments the vendor workload. Fails with
	// ErrInvalidTransition when the order is already pending or accepted.
	TentativelyAssign(ctx context.Context, orderId, vendorId string, pendingSince, timeoutAt time.Time) error

	// AcceptAssignment moves PENDING -> ACCEPTED for the candidate vendor
	// and advances the order lifecycle to ASSIGNED.
	AcceptAssignment(ctx context.Context, orderId, vendorId string, now time.Time) error

	// DeclineAssignment moves PENDING -> TIMED_OUT for the candidate
	// vendor, counts the attempt, and releases the workload slot.
	DeclineAssignment(ctx context.Context, orderId, vendorId, reason string, now time.Time) (models.Order, error)

	// ExpireAssignment is the timeout transition. It applies only when the
	// order is still PENDING with that same vendor; a stale check returns
	// applied=false and mutates nothing.
	ExpireAssignment(ctx context.Context, orderId, vendorId string, now time.Time) (order models.Order, applied bool, err error)

	// MarkManualRequired parks the order for operator intervention and
	// clears the candidate.
	MarkManualRequired(ctx context.Context, orderId string, now time.Time) error

	// ReleaseCancelled clears a pending assignment on a cancelled order,
	// returning the workload slot if a vendor was tentatively holding it.
	ReleaseCancelled(ctx context.Context, orderId, reason string, now time.Time) error

	SaveRule(ctx context.Context, rule models.PriceRule) error
	ListRules(ctx context.Context) ([]models.PriceRule, error)

	SaveOutbox(ctx context.Context, outbox Outbox) error
	GetUnpublishedOutbox(ctx context.Context, limit int, topic string) ([]Outbox, error)
	UpdateOutboxPublished(ctx context.Context, ids []string) error
}

type Outbox struct {
	Id        string `json:"id"`
	Key       string `json:"key"`
	EventType string `json:"event_type"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
}
