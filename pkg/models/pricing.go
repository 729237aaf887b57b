package models

import "time"

type PaperType struct {
	Id           string  `json:"id"`
	Name         string  `json:"name"`
	PerPageBW    float64 `json:"per_page_bw"`
	PerPageColor float64 `json:"per_page_color"`
}

type DeliveryCharge struct {
	BaseRate  float64 `json:"base_rate"`
	PerKmRate float64 `json:"per_km_rate"`
	FreeAbove float64 `json:"free_above"`
}

// PriceRule is immutable once published. Orders snapshot the rule applied
// at estimate time so later edits never reprice an existing order.
type PriceRule struct {
	RuleId             string             `json:"rule_id"`
	Name               string             `json:"name"`
	Active             bool               `json:"active"`
	EffectiveFrom      time.Time          `json:"effective_from"`
	EffectiveTo        *time.Time         `json:"effective_to,omitempty"`
	PaperTypes         []PaperType        `json:"paper_types"`
	LaminationPerSheet float64            `json:"lamination_per_sheet"`
	Binding            map[string]float64 `json:"binding"`
	Delivery           DeliveryCharge     `json:"delivery_charge"`
	CreatedAt          time.Time          `json:"created_at"`
}

func (r PriceRule) PaperType(id string) (PaperType, bool) {
	for _, pt := range r.PaperTypes {
		if pt.Id == id {
			return pt, true
		}
	}
	return PaperType{}, false
}

type BreakdownLine struct {
	FileName         string  `json:"file_name"`
	PaperType        string  `json:"paper_type"`
	Pages            int     `json:"pages"`
	Copies           int     `json:"copies"`
	Color            bool    `json:"color"`
	PerPageRate      float64 `json:"per_page_rate"`
	LaminationSheets int     `json:"lamination_sheets"`
	BindingType      string  `json:"binding"`
	Subtotal         float64 `json:"subtotal"`
}

type Estimate struct {
	ItemsTotal     float64         `json:"items_total"`
	DeliveryCharge float64         `json:"delivery_charge"`
	Total          float64         `json:"total"`
	Breakdown      []BreakdownLine `json:"breakdown"`
	AppliedRuleId  string          `json:"applied_rule_id"`
}

// PricingSnapshot is persisted on the order at creation time. It embeds the
// full rule so the delivery charge can be recomputed against the real vendor
// distance without consulting (possibly edited) current rules.
type PricingSnapshot struct {
	AppliedRuleId string          `json:"applied_rule_id"`
	Rule          PriceRule       `json:"rule"`
	Breakdown     []BreakdownLine `json:"breakdown"`
	TakenAt       time.Time       `json:"taken_at"`
}

type EstimateRequest struct {
	Items            []OrderItem     `json:"items" binding:"required"`
	FulfillmentType  FulfillmentType `json:"fulfillment_type" binding:"required"`
	CustomerLocation *Location       `json:"customer_location,omitempty"`
}
