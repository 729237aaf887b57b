package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
	"github.com/vaishnaviprints/printlogic/pkg/models"
)

const errFmtNotFound = "resource with id %s not found"

// MemoryStore is the in-process Store used by tests and local runs. A
// single mutex covers every transition, which trivially gives the
// order-state/workload atomicity the interface promises.
type MemoryStore struct {
	mu      sync.RWMutex
	orders  map[string]models.Order
	vendors map[string]models.Vendor
	rules   map[string]models.PriceRule
	outbox  []Outbox
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:  make(map[string]models.Order),
		vendors: make(map[string]models.Vendor),
		rules:   make(map[string]models.PriceRule),
	}
}

func notFound(op, id string) error {
	return svcerror.New(
		svcerror.ErrNotFound,
		svcerror.WithOp(op),
		svcerror.WithMsg(fmt.Sprintf(errFmtNotFound, id)),
	)
}

func (s *MemoryStore) SaveOrder(ctx context.Context, order models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.OrderId] = order
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, orderId string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderId]
	if !ok {
		return models.Order{}, notFound("Store.Memory.GetOrder", orderId)
	}
	return order, nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, orderId string, status models.OrderStatus, change models.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderId]
	if !ok {
		return notFound("Store.Memory.UpdateOrderStatus", orderId)
	}
	order.Status = status
	order.StatusHistory = append(order.StatusHistory, change)
	order.UpdatedAt = change.At
	s.orders[orderId] = order
	return nil
}

func (s *MemoryStore) UpdateOrderTotals(ctx context.Context, orderId string, deliveryCharge, total float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderId]
	if !ok {
		return notFound("Store.Memory.UpdateOrderTotals", orderId)
	}
	order.DeliveryCharge = deliveryCharge
	order.Total = total
	s.orders[orderId] = order
	return nil
}

func (s *MemoryStore) ListManualRequired(ctx context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var parked []models.Order
	for _, order := range s.orders {
		if order.Assignment.Status == models.ASSIGNMENT_STATUS_MANUAL_REQUIRED {
			parked = append(parked, order)
		}
	}
	sort.Slice(parked, func(i, j int) bool { return parked[i].OrderId < parked[j].OrderId })
	return parked, nil
}

func (s *MemoryStore) SaveVendor(ctx context.Context, vendor models.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors[vendor.VendorId] = vendor
	return nil
}

func (s *MemoryStore) GetVendor(ctx context.Context, vendorId string) (models.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vendor, ok := s.vendors[vendorId]
	if !ok {
		return models.Vendor{}, notFound("Store.Memory.GetVendor", vendorId)
	}
	return vendor, nil
}

func (s *MemoryStore) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vendors := make([]models.Vendor, 0, len(s.vendors))
	for _, vendor := range s.vendors {
		vendors = append(vendors, vendor)
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i].VendorId < vendors[j].VendorId })
	return vendors, nil
}

func (s *MemoryStore) AdjustVendorWorkload(ctx context.Context, vendorId string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustWorkloadLocked(vendorId, delta)
}

func (s *MemoryStore) adjustWorkloadLocked(vendorId string, delta int64) error {
	vendor, ok := s.vendors[vendorId]
	if !ok {
		return notFound("Store.Memory.AdjustVendorWorkload", vendorId)
	}
	vendor.CurrentWorkload += delta
	if vendor.CurrentWorkload < 0 {
		vendor.CurrentWorkload = 0
	}
	s.vendors[vendorId] = vendor
	return nil
}

func (s *MemoryStore) TentativelyAssign(ctx context.Context, orderId, vendorId string, pendingSince, timeoutAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderId]
	if !ok {
		return notFound("Store.Memory.TentativelyAssign", orderId)
	}
	if _, ok := s.vendors[vendorId]; !ok {
		return notFound("Store.Memory.TentativelyAssign", vendorId)
	}

	switch order.Assignment.Status {
	case models.ASSIGNMENT_STATUS_PENDING, models.ASSIGNMENT_STATUS_ACCEPTED:
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp("Store.Memory.TentativelyAssign"),
			svcerror.WithMsg(fmt.Sprintf("order %s already %s", orderId, order.Assignment.Status)),
		)
	}
	if order.Status == models.ORDER_STATUS_CANCELLED {
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp("Store.Memory.TentativelyAssign"),
			svcerror.WithMsg(fmt.Sprintf("order %s is cancelled", orderId)),
		)
	}

	order.Assignment.Status = models.ASSIGNMENT_STATUS_PENDING
	order.Assignment.CandidateVendorId = vendorId
	order.Assignment.PendingSince = pendingSince
	order.Assignment.TimeoutAt = timeoutAt
	if !order.Assignment.Tried(vendorId) {
		order.Assignment.AttemptedVendorIds = append(order.Assignment.AttemptedVendorIds, vendorId)
	}
	order.UpdatedAt = pendingSince
	s.orders[orderId] = order

	return s.adjustWorkloadLocked(vendorId, +1)
}

func (s *MemoryStore) AcceptAssignment(ctx context.Context, orderId, vendorId string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderId]
	if !ok {
		return notFound("Store.Memory.AcceptAssignment", orderId)
	}

	if order.Assignment.Status != models.ASSIGNMENT_STATUS_PENDING || order.Assignment.CandidateVendorId != vendorId {
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp("Store.Memory.AcceptAssignment"),
			svcerror.WithMsg(fmt.Sprintf("order %s not pending for vendor %s", orderId, vendorId)),
		)
	}

	order.Assignment.Status = models.ASSIGNMENT_STATUS_ACCEPTED
	order.Status = models.ORDER_STATUS_ASSIGNED
	order.StatusHistory = append(order.StatusHistory, models.StatusChange{
		Status: models.ORDER_STATUS_ASSIGNED,
		By:     vendorId,
		Note:   "Vendor accepted order",
		At:     now,
	})
	order.UpdatedAt = now
	s.orders[orderId] = order
	return nil
}

func (s *MemoryStore) DeclineAssignment(ctx context.Context, orderId, vendorId, reason string, now time.Time) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderId]
	if !ok {
		return models.Order{}, notFound("Store.Memory.DeclineAssignment", orderId)
	}

	if order.Assignment.Status != models.ASSIGNMENT_STATUS_PENDING || order.Assignment.CandidateVendorId != vendorId {
		return models.Order{}, svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp("Store.Memory.DeclineAssignment"),
			svcerror.WithMsg(fmt.Sprintf("order %s not pending for vendor %s", orderId, vendorId)),
		)
	}

	order.Assignment.Status = models.ASSIGNMENT_STATUS_TIMED_OUT
	order.Assignment.CandidateVendorId = ""
	order.Assignment.ReassignmentAttempts++
	order.Assignment.DeclineReason = reason
	order.UpdatedAt = now
	s.orders[orderId] = order

	if err := s.adjustWorkloadLocked(vendorId, -1); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (s *MemoryStore) ExpireAssignment(ctx context.Context, orderId, vendorId string, now time.Time) (models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderId]
	if !ok {
		return models.Order{}, false, notFound("Store.Memory.ExpireAssignment", orderId)
	}

	// stale timer: the order moved on while the timer was in flight
	if order.Assignment.Status != models.ASSIGNMENT_STATUS_PENDING || order.Assignment.CandidateVendorId != vendorId {
		return order, false, nil
	}
	if order.Status == models.ORDER_STATUS_CANCELLED {
		return order, false, nil
	}

	order.Assignment.Status = models.ASSIGNMENT_STATUS_TIMED_OUT
	order.Assignment.CandidateVendorId = ""
	order.Assignment.ReassignmentAttempts++
	order.UpdatedAt = now
	s.orders[orderId] = order

	if err := s.adjustWorkloadLocked(vendorId, -1); err != nil {
		return models.Order{}, false, err
	}
	return order, true, nil
}

func (s *MemoryStore) MarkManualRequired(ctx context.Context, orderId string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderId]
	if !ok {
		return notFound("Store.Memory.MarkManualRequired", orderId)
	}

	order.Assignment.Status = models.ASSIGNMENT_STATUS_MANUAL_REQUIRED
	order.Assignment.CandidateVendorId = ""
	order.UpdatedAt = now
	s.orders[orderId] = order
	return nil
}

func (s *MemoryStore) ReleaseCancelled(ctx context.Context, orderId, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderId]
	if !ok {
		return notFound("Store.Memory.ReleaseCancelled", orderId)
	}

	holder := ""
	if order.Assignment.Status == models.ASSIGNMENT_STATUS_PENDING {
		holder = order.Assignment.CandidateVendorId
	}

	order.Status = models.ORDER_STATUS_CANCELLED
	order.Assignment.Status = models.ASSIGNMENT_STATUS_UNASSIGNED
	order.Assignment.CandidateVendorId = ""
	order.StatusHistory = append(order.StatusHistory, models.StatusChange{
		Status: models.ORDER_STATUS_CANCELLED,
		By:     "customer",
		Note:   reason,
		At:     now,
	})
	order.UpdatedAt = now
	s.orders[orderId] = order

	if holder != "" {
		return s.adjustWorkloadLocked(holder, -1)
	}
	return nil
}

func (s *MemoryStore) SaveRule(ctx context.Context, rule models.PriceRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.RuleId] = rule
	return nil
}

func (s *MemoryStore) ListRules(ctx context.Context) ([]models.PriceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := make([]models.PriceRule, 0, len(s.rules))
	for _, rule := range s.rules {
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s *MemoryStore) SaveOutbox(ctx context.Context, outbox Outbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, outbox)
	return nil
}

func (s *MemoryStore) GetUnpublishedOutbox(ctx context.Context, limit int, topic string) ([]Outbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var batch []Outbox
	for _, entry := range s.outbox {
		if entry.Topic != topic {
			continue
		}
		batch = append(batch, entry)
		if len(batch) >= limit {
			break
		}
	}
	return batch, nil
}

func (s *MemoryStore) UpdateOutboxPublished(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	published := make(map[string]bool, len(ids))
	for _, id := range ids {
		published[id] = true
	}
	kept := s.outbox[:0]
	for _, entry := range s.outbox {
		if !published[entry.Id] {
			kept = append(kept, entry)
		}
	}
	s.outbox = kept
	return nil
}
