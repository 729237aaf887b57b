package events

import (
	"time"

	"github.com/vaishnaviprints/printlogic/pkg/models"
)

type EventType string

const (
	EvtTypeOrderPaid             EventType = "ORDER_PAID"
	EvtTypeOrderCancelled        EventType = "ORDER_CANCELLED"
	EvtTypeVendorResponded       EventType = "VENDOR_RESPONDED"
	EvtTypeOrderOffered          EventType = "ORDER_OFFERED"
	EvtTypeAssignmentPending     EventType = "ASSIGNMENT_PENDING"
	EvtTypeAssignmentAccepted    EventType = "ASSIGNMENT_ACCEPTED"
	EvtTypeAssignmentTimedOut    EventType = "ASSIGNMENT_TIMED_OUT"
	EvtTypeAssignmentDeclined    EventType = "ASSIGNMENT_DECLINED"
	EvtTypeManualAssignRequired  EventType = "MANUAL_ASSIGNMENT_REQUIRED"
	EvtTypeManualAssignRequested EventType = "MANUAL_ASSIGN_REQUESTED"
	EvtTypeDeadLetterQueue       EventType = "DEAD_LETTER"
)

const (
	ProducerGateway       = "gateway"
	ProducerAssignmentSvc = "assignment-service"
)

type Metadata struct {
	MessageId     string    `json:"message_id"`
	Type          EventType `json:"type"`
	OrderId       string    `json:"order_id"`
	CorrelationId string    `json:"correlation_id"`
	CausationId   string    `json:"causation_id"`
	Timestamp     time.Time `json:"timestamp"`
	Producer      string    `json:"producer"`
}

type DomainEvent interface {
	GetMetadata() Metadata
}

// order-paid: the order is priced and paid, ready for vendor matching
type EventOrderPaid struct {
	Metadata Metadata `json:"mtdt"`
	Total    float64  `json:"total"`
}

func (op EventOrderPaid) GetMetadata() Metadata { return op.Metadata }

// order-cancelled: customer cancelled before production started
type EventOrderCancelled struct {
	Metadata Metadata `json:"mtdt"`
	Reason   string   `json:"reason"`
}

func (oc EventOrderCancelled) GetMetadata() Metadata { return oc.Metadata }

// vendor-responded: accept or decline from the vendor channel
type EventVendorResponded struct {
	Metadata Metadata              `json:"mtdt"`
	VendorId string                `json:"vendor_id"`
	Decision models.VendorDecision `json:"decision"`
	Reason   string                `json:"reason,omitempty"`
}

func (vr EventVendorResponded) GetMetadata() Metadata { return vr.Metadata }

// order-offered: tentative assignment notification to the vendor channel
type EventOrderOffered struct {
	Metadata       Metadata  `json:"mtdt"`
	VendorId       string    `json:"vendor_id"`
	Summary        string    `json:"summary"`
	Total          string    `json:"total"`
	CreatedAt      time.Time `json:"created_at"`
	TimeoutMinutes int       `json:"timeout_minutes"`
}

func (oo EventOrderOffered) GetMetadata() Metadata { return oo.Metadata }

// manual-assign: operator hands a parked order to a chosen vendor
type EventManualAssign struct {
	Metadata   Metadata `json:"mtdt"`
	VendorId   string   `json:"vendor_id"`
	AssignedBy string   `json:"assigned_by,omitempty"`
}

func (ma EventManualAssign) GetMetadata() Metadata { return ma.Metadata }

// assignment lifecycle: pending/accepted/timed-out/manual-required
type EventAssignmentChanged struct {
	Metadata Metadata                `json:"mtdt"`
	VendorId string                  `json:"vendor_id,omitempty"`
	Status   models.AssignmentStatus `json:"status"`
	Attempts int                     `json:"attempts"`
	Reason   string                  `json:"reason,omitempty"`
}

func (ac EventAssignmentChanged) GetMetadata() Metadata { return ac.Metadata }

type EventDLQ struct {
	Metadata     Metadata `json:"mtdt"`
	ErrorDetails error    `json:"error_details"`
	Payload      []byte   `json:"payload"`
}

func (dlq EventDLQ) GetMetadata() Metadata { return dlq.Metadata }
