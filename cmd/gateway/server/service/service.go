package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vaishnaviprints/printlogic/pkg/database"
	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
	"github.com/vaishnaviprints/printlogic/pkg/events"
	"github.com/vaishnaviprints/printlogic/pkg/kafka"
	"github.com/vaishnaviprints/printlogic/pkg/models"
	"github.com/vaishnaviprints/printlogic/pkg/pricing"
	"github.com/vaishnaviprints/printlogic/pkg/ranking"
	"github.com/vaishnaviprints/printlogic/pkg/repository"
	"github.com/vaishnaviprints/printlogic/pkg/utils"
)

type Service struct {
	Store    database.Store
	Producer *kafka.Producer
	Pricing  *pricing.Engine
	Rules    *repository.RuleCache
}

func NewService(ctx context.Context, producer *kafka.Producer) (*Service, error) {
	store, err := database.NewStoreFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("Failed to initialize store: %w", err)
	}

	ruleRepo, err := repository.NewRepository(
		ctx,
		repository.RepositoryType(utils.GetEnv("RULE_CACHE_BACKEND", "memory")),
		"price_rule",
		func(r models.PriceRule) string { return r.RuleId },
	)
	if err != nil {
		return nil, fmt.Errorf("Failed to initialize rule cache: %w", err)
	}

	ruleCache := repository.NewRuleCache(ruleRepo, store)

	return &Service{
		Store:    store,
		Producer: producer,
		Pricing:  pricing.NewEngine(ruleCache),
		Rules:    ruleCache,
	}, nil
}

// EstimateResult pairs the priced quote with a vendor match for pickup
// requests: either an auto-assigned vendor, or nearest-vendor suggestions
// when manual selection is required.
type EstimateResult struct {
	models.Estimate
	VendorMatch *ranking.AutoAssignResult `json:"vendor_match,omitempty"`
}

func (s *Service) Estimate(ctx context.Context, req models.EstimateRequest) (EstimateResult, error) {
	estimate, _, err := s.Pricing.Estimate(ctx, req, time.Now().UTC())
	if err != nil {
		return EstimateResult{}, err
	}
	result := EstimateResult{Estimate: estimate}

	if req.FulfillmentType == models.FULFILLMENT_PICKUP && req.CustomerLocation != nil {
		vendors, err := s.Store.ListVendors(ctx)
		if err != nil {
			log.Printf("[SERVICE] Vendor match skipped for estimate: %v", err)
			return result, nil
		}
		match := ranking.AutoAssign(*req.CustomerLocation, vendors)
		result.VendorMatch = &match
	}
	return result, nil
}

// CreateOrder prices the request under the active rule, snapshots the rule
// on the order, and parks it awaiting payment.
func (s *Service) CreateOrder(ctx context.Context, req *models.OrderRequest) (*models.Order, error) {
	now := time.Now().UTC()

	estReq := models.EstimateRequest{
		Items:            req.Items,
		FulfillmentType:  req.FulfillmentType,
		CustomerLocation: req.CustomerLocation,
	}
	estimate, snapshot, err := s.Pricing.Estimate(ctx, estReq, now)
	if err != nil {
		return nil, svcerror.AddOp(err, "Service.CreateOrder")
	}

	order := models.Order{
		OrderId:          uuid.NewString(),
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		Items:            req.Items,
		FulfillmentType:  req.FulfillmentType,
		CustomerLocation: req.CustomerLocation,
		ItemsTotal:       estimate.ItemsTotal,
		DeliveryCharge:   estimate.DeliveryCharge,
		Total:            estimate.Total,
		Status:           models.ORDER_STATUS_PAYMENT_PENDING,
		Pricing:          snapshot,
		Assignment:       models.AssignmentState{Status: models.ASSIGNMENT_STATUS_UNASSIGNED},
		StatusHistory: []models.StatusChange{{
			Status: models.ORDER_STATUS_PAYMENT_PENDING,
			By:     req.CustomerName,
			Note:   "Order created",
			At:     now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Store.SaveOrder(ctx, order); err != nil {
		return nil, svcerror.AddOp(err, "Service.CreateOrder")
	}

	return &order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderId string) (models.Order, error) {
	return s.Store.GetOrder(ctx, orderId)
}

// PayOrder records the payment and hands the order to the assignment
// service through the order topic.
func (s *Service) PayOrder(ctx context.Context, orderId string) (models.Order, error) {
	op := "Service.PayOrder"
	now := time.Now().UTC()

	order, err := s.Store.GetOrder(ctx, orderId)
	if err != nil {
		return models.Order{}, svcerror.AddOp(err, op)
	}
	if order.Status != models.ORDER_STATUS_PAYMENT_PENDING {
		return models.Order{}, svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp(op),
			svcerror.WithMsg(fmt.Sprintf("order %s is %s, expected %s", orderId, order.Status, models.ORDER_STATUS_PAYMENT_PENDING)),
		)
	}

	change := models.StatusChange{
		Status: models.ORDER_STATUS_PAID,
		By:     order.CustomerName,
		Note:   "Payment received",
		At:     now,
	}
	if err := s.Store.UpdateOrderStatus(ctx, orderId, models.ORDER_STATUS_PAID, change); err != nil {
		return models.Order{}, svcerror.AddOp(err, op)
	}

	evt := events.EventOrderPaid{
		Metadata: events.Metadata{
			MessageId:     uuid.NewString(),
			Type:          events.EvtTypeOrderPaid,
			OrderId:       orderId,
			CorrelationId: uuid.NewString(),
			Timestamp:     now,
			Producer:      events.ProducerGateway,
		},
		Total: order.Total,
	}
	if err := s.Producer.PublishEvent(ctx, kafka.EventMessage{
		Topic: kafka.TopicOrder,
		Key:   orderId,
		Event: evt,
	}); err != nil {
		return models.Order{}, svcerror.AddOp(err, op)
	}

	order.Status = models.ORDER_STATUS_PAID
	return order, nil
}

// CancelOrder is accepted until production starts. The assignment service
// consumes the event and releases any tentative vendor.
func (s *Service) CancelOrder(ctx context.Context, orderId, reason string) error {
	op := "Service.CancelOrder"

	order, err := s.Store.GetOrder(ctx, orderId)
	if err != nil {
		return svcerror.AddOp(err, op)
	}
	switch order.Status {
	case models.ORDER_STATUS_PAYMENT_PENDING, models.ORDER_STATUS_PAID, models.ORDER_STATUS_ASSIGNED:
	default:
		return svcerror.New(
			svcerror.ErrInvalidTransition,
			svcerror.WithOp(op),
			svcerror.WithMsg(fmt.Sprintf("order %s is %s, too late to cancel", orderId, order.Status)),
		)
	}

	evt := events.EventOrderCancelled{
		Metadata: events.Metadata{
			MessageId: uuid.NewString(),
			Type:      events.EvtTypeOrderCancelled,
			OrderId:   orderId,
			Timestamp: time.Now().UTC(),
			Producer:  events.ProducerGateway,
		},
		Reason: reason,
	}
	if err := s.Producer.PublishEvent(ctx, kafka.EventMessage{
		Topic: kafka.TopicOrder,
		Key:   orderId,
		Event: evt,
	}); err != nil {
		return svcerror.AddOp(err, op)
	}
	return nil
}

// VendorRespond forwards an accept/decline to the assignment service. The
// decision is applied there so racing against the timeout stays serialized.
func (s *Service) VendorRespond(ctx context.Context, resp models.VendorResponse) error {
	evt := events.EventVendorResponded{
		Metadata: events.Metadata{
			MessageId: uuid.NewString(),
			Type:      events.EvtTypeVendorResponded,
			OrderId:   resp.OrderId,
			Timestamp: time.Now().UTC(),
			Producer:  events.ProducerGateway,
		},
		VendorId: resp.VendorId,
		Decision: resp.Decision,
		Reason:   resp.Reason,
	}
	if err := s.Producer.PublishEvent(ctx, kafka.EventMessage{
		Topic: kafka.TopicVendor,
		Key:   resp.OrderId,
		Event: evt,
	}); err != nil {
		return svcerror.AddOp(err, "Service.VendorRespond")
	}
	return nil
}

// ManualAssign forwards an operator's vendor choice for a parked order.
func (s *Service) ManualAssign(ctx context.Context, orderId, vendorId, assignedBy string) error {
	evt := events.EventManualAssign{
		Metadata: events.Metadata{
			MessageId: uuid.NewString(),
			Type:      events.EvtTypeManualAssignRequested,
			OrderId:   orderId,
			Timestamp: time.Now().UTC(),
			Producer:  events.ProducerGateway,
		},
		VendorId:   vendorId,
		AssignedBy: assignedBy,
	}
	if err := s.Producer.PublishEvent(ctx, kafka.EventMessage{
		Topic: kafka.TopicVendor,
		Key:   orderId,
		Event: evt,
	}); err != nil {
		return svcerror.AddOp(err, "Service.ManualAssign")
	}
	return nil
}

func (s *Service) ListManualQueue(ctx context.Context) ([]models.Order, error) {
	return s.Store.ListManualRequired(ctx)
}

func (s *Service) RegisterVendor(ctx context.Context, vendor models.Vendor) (models.Vendor, error) {
	if vendor.VendorId == "" {
		vendor.VendorId = uuid.NewString()
	}
	if err := s.Store.SaveVendor(ctx, vendor); err != nil {
		return models.Vendor{}, svcerror.AddOp(err, "Service.RegisterVendor")
	}
	return vendor, nil
}

// CreateRule publishes a new price rule. Rules are append-only: the id is
// always generated here, so an existing rule can never be overwritten.
func (s *Service) CreateRule(ctx context.Context, rule models.PriceRule) (models.PriceRule, error) {
	rule.RuleId = uuid.NewString()
	rule.CreatedAt = time.Now().UTC()
	if rule.EffectiveFrom.IsZero() {
		rule.EffectiveFrom = rule.CreatedAt
	}

	if err := s.Store.SaveRule(ctx, rule); err != nil {
		return models.PriceRule{}, svcerror.AddOp(err, "Service.CreateRule")
	}
	// flush the warmed cache or estimates keep pricing under the old set
	s.Rules.Clear(ctx)
	return rule, nil
}
