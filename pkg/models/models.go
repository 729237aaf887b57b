package models

import "time"

type OrderStatus string

const (
	ORDER_STATUS_DRAFT              OrderStatus = "DRAFT"
	ORDER_STATUS_ESTIMATED          OrderStatus = "ESTIMATED"
	ORDER_STATUS_PAYMENT_PENDING    OrderStatus = "PAYMENT_PENDING"
	ORDER_STATUS_PAID               OrderStatus = "PAID"
	ORDER_STATUS_ASSIGNED           OrderStatus = "ASSIGNED"
	ORDER_STATUS_IN_PRODUCTION      OrderStatus = "IN_PRODUCTION"
	ORDER_STATUS_READY_FOR_DELIVERY OrderStatus = "READY_FOR_DELIVERY"
	ORDER_STATUS_OUT_FOR_DELIVERY   OrderStatus = "OUT_FOR_DELIVERY"
	ORDER_STATUS_DELIVERED          OrderStatus = "DELIVERED"
	ORDER_STATUS_READY_FOR_PICKUP   OrderStatus = "READY_FOR_PICKUP"
	ORDER_STATUS_PICKED_UP          OrderStatus = "PICKED_UP"
	ORDER_STATUS_CANCELLED          OrderStatus = "CANCELLED"
)

type FulfillmentType string

const (
	FULFILLMENT_PICKUP   FulfillmentType = "PICKUP"
	FULFILLMENT_DELIVERY FulfillmentType = "DELIVERY"
)

type AssignmentStatus string

const (
	ASSIGNMENT_STATUS_UNASSIGNED      AssignmentStatus = "UNASSIGNED"
	ASSIGNMENT_STATUS_PENDING         AssignmentStatus = "PENDING"
	ASSIGNMENT_STATUS_ACCEPTED        AssignmentStatus = "ACCEPTED"
	ASSIGNMENT_STATUS_TIMED_OUT       AssignmentStatus = "TIMED_OUT"
	ASSIGNMENT_STATUS_MANUAL_REQUIRED AssignmentStatus = "MANUAL_REQUIRED"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	City      string  `json:"city"`
	Pincode   string  `json:"pincode"`
}

// Badge tiers, ordered none < bronze < silver < gold < diamond < platinum.
const (
	BADGE_NONE     string = "none"
	BADGE_BRONZE   string = "bronze"
	BADGE_SILVER   string = "silver"
	BADGE_GOLD     string = "gold"
	BADGE_DIAMOND  string = "diamond"
	BADGE_PLATINUM string = "platinum"
)

type Vendor struct {
	VendorId           string   `json:"vendor_id"`
	Name               string   `json:"name"`
	ShopName           string   `json:"shop_name"`
	Badge              string   `json:"badge"`
	Location           Location `json:"location"`
	ContactPhone       string   `json:"contact_phone"`
	ContactEmail       string   `json:"contact_email"`
	StoreOpen          bool     `json:"store_open"`
	IsActive           bool     `json:"is_active"`
	CurrentWorkload    int64    `json:"current_workload_count"`
	AutoAcceptRadiusKm float64  `json:"auto_accept_radius_km"`
}

type OrderItem struct {
	FileName         string `json:"file_name"`
	NumPages         int    `json:"num_pages"`
	NumCopies        int    `json:"num_copies"`
	PaperTypeId      string `json:"paper_type_id"`
	IsColor          bool   `json:"is_color"`
	LaminationSheets int    `json:"lamination_sheets"`
	BindingType      string `json:"binding_type"`
}

// AssignmentState is the coordinator's working state, embedded in Order.
// CandidateVendorId is non-empty iff Status is PENDING or ACCEPTED.
type AssignmentState struct {
	Status               AssignmentStatus `json:"status"`
	CandidateVendorId    string           `json:"candidate_vendor_id,omitempty"`
	PendingSince         time.Time        `json:"pending_since,omitzero"`
	TimeoutAt            time.Time        `json:"timeout_at,omitzero"`
	ReassignmentAttempts int              `json:"reassignment_attempts"`
	AttemptedVendorIds   []string         `json:"attempted_vendor_ids,omitempty"`
	DeclineReason        string           `json:"decline_reason,omitempty"`
}

func (s AssignmentState) Tried(vendorId string) bool {
	for _, id := range s.AttemptedVendorIds {
		if id == vendorId {
			return true
		}
	}
	return false
}

type StatusChange struct {
	Status OrderStatus `json:"status"`
	By     string      `json:"by"`
	Note   string      `json:"note"`
	At     time.Time   `json:"at"`
}

type Order struct {
	OrderId          string          `json:"order_id"`
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	CustomerPhone    string          `json:"customer_phone"`
	Items            []OrderItem     `json:"items"`
	FulfillmentType  FulfillmentType `json:"fulfillment_type"`
	CustomerLocation *Location       `json:"customer_location,omitempty"`
	ItemsTotal       float64         `json:"items_total"`
	DeliveryCharge   float64         `json:"delivery_charge"`
	Total            float64         `json:"total"`
	Status           OrderStatus     `json:"status"`
	Pricing          PricingSnapshot `json:"pricing_snapshot"`
	Assignment       AssignmentState `json:"assignment"`
	StatusHistory    []StatusChange  `json:"status_history,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (o Order) TotalPages() int {
	pages := 0
	for _, item := range o.Items {
		pages += item.NumPages
	}
	return pages
}

type OrderRequest struct {
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	CustomerPhone    string          `json:"customer_phone"`
	Items            []OrderItem     `json:"items" binding:"required"`
	FulfillmentType  FulfillmentType `json:"fulfillment_type" binding:"required"`
	CustomerLocation *Location       `json:"customer_location,omitempty"`
}

type OrderResponse struct {
	OrderId string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Message string      `json:"message"`
}

type VendorDecision string

const (
	DECISION_ACCEPT  VendorDecision = "ACCEPT"
	DECISION_DECLINE VendorDecision = "DECLINE"
)

type VendorResponse struct {
	OrderId  string         `json:"order_id"`
	VendorId string         `json:"vendor_id"`
	Decision VendorDecision `json:"decision" binding:"required"`
	Reason   string         `json:"reason,omitempty"`
}
