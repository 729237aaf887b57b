package pricing

import (
	"context"
	"time"

	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
	"github.com/vaishnaviprints/printlogic/pkg/geo"
	"github.com/vaishnaviprints/printlogic/pkg/models"
)

// Provisional vendor distance used for delivery estimates before a real
// vendor has been matched. The charge is recomputed on acceptance.
const ProvisionalDeliveryKm = 5.0

const BindingNone = "none"

// RuleSource yields all known price rules; the engine picks the active one.
type RuleSource interface {
	ListRules(ctx context.Context) ([]models.PriceRule, error)
}

type Engine struct {
	Rules RuleSource
}

func NewEngine(rules RuleSource) *Engine {
	return &Engine{Rules: rules}
}

// ActiveRule selects the rule in effect at the given instant. When several
// rules qualify, the latest EffectiveFrom wins; ties fall back to latest
// CreatedAt, then greatest rule id, so selection never depends on storage
// order.
func ActiveRule(rules []models.PriceRule, now time.Time) (models.PriceRule, error) {
	var best models.PriceRule
	found := false

	for _, rule := range rules {
		if !rule.Active || rule.EffectiveFrom.After(now) {
			continue
		}
		if rule.EffectiveTo != nil && rule.EffectiveTo.Before(now) {
			continue
		}
		if !found || moreRecent(rule, best) {
			best = rule
			found = true
		}
	}

	if !found {
		return models.PriceRule{}, svcerror.New(
			svcerror.ErrNoActiveRule,
			svcerror.WithOp("Pricing.ActiveRule"),
			svcerror.WithMsg("no price rule in effect"),
			svcerror.WithTime(now),
		)
	}
	return best, nil
}

func moreRecent(a, b models.PriceRule) bool {
	if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
		return a.EffectiveFrom.After(b.EffectiveFrom)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.RuleId > b.RuleId
}

// ItemSubtotal prices a single item: pages x copies x per-page rate, plus
// lamination sheets, plus a flat binding fee. The subtotal stays at full
// precision; rounding happens once at the aggregate.
func ItemSubtotal(item models.OrderItem, rule models.PriceRule) (float64, models.BreakdownLine, error) {
	paper, ok := rule.PaperType(item.PaperTypeId)
	if !ok {
		return 0, models.BreakdownLine{}, svcerror.New(
			svcerror.ErrUnknownPaperType,
			svcerror.WithOp("Pricing.ItemSubtotal"),
			svcerror.WithMsg("paper type "+item.PaperTypeId+" not found in rule "+rule.RuleId),
		)
	}

	perPage := paper.PerPageBW
	if item.IsColor {
		perPage = paper.PerPageColor
	}

	bindingFee := 0.0
	if item.BindingType != "" && item.BindingType != BindingNone {
		fee, ok := rule.Binding[item.BindingType]
		if !ok {
			return 0, models.BreakdownLine{}, svcerror.New(
				svcerror.ErrUnknownBindingType,
				svcerror.WithOp("Pricing.ItemSubtotal"),
				svcerror.WithMsg("binding type "+item.BindingType+" not found in rule "+rule.RuleId),
			)
		}
		bindingFee = fee
	}

	pagesCost := float64(item.NumPages) * float64(item.NumCopies) * perPage
	laminationCost := float64(item.LaminationSheets) * rule.LaminationPerSheet
	subtotal := pagesCost + laminationCost + bindingFee

	line := models.BreakdownLine{
		FileName:         item.FileName,
		PaperType:        paper.Name,
		Pages:            item.NumPages,
		Copies:           item.NumCopies,
		Color:            item.IsColor,
		PerPageRate:      perPage,
		LaminationSheets: item.LaminationSheets,
		BindingType:      item.BindingType,
		Subtotal:         subtotal,
	}
	return subtotal, line, nil
}

// DeliveryChargeFor computes the delivery charge for an order total at a
// given vendor distance. Pickup orders and orders over the free-delivery
// threshold cost nothing.
func DeliveryChargeFor(rule models.PriceRule, fulfillment models.FulfillmentType, itemsTotal, distanceKm float64) float64 {
	if fulfillment != models.FULFILLMENT_DELIVERY {
		return 0
	}
	if rule.Delivery.FreeAbove > 0 && itemsTotal >= rule.Delivery.FreeAbove {
		return 0
	}
	return rule.Delivery.BaseRate + distanceKm*rule.Delivery.PerKmRate
}

// Estimate computes the full cost breakdown under the currently effective
// rule and returns the snapshot to persist on the order.
func (e *Engine) Estimate(ctx context.Context, req models.EstimateRequest, now time.Time) (models.Estimate, models.PricingSnapshot, error) {
	rules, err := e.Rules.ListRules(ctx)
	if err != nil {
		return models.Estimate{}, models.PricingSnapshot{}, svcerror.AddOp(err, "Pricing.Estimate")
	}

	rule, err := ActiveRule(rules, now)
	if err != nil {
		return models.Estimate{}, models.PricingSnapshot{}, svcerror.AddOp(err, "Pricing.Estimate")
	}

	return EstimateWithRule(req, rule, ProvisionalDeliveryKm, now)
}

// EstimateWithRule prices against an explicit rule, used both for fresh
// estimates and for the recompute against a snapshotted rule once the
// actual vendor distance is known.
func EstimateWithRule(req models.EstimateRequest, rule models.PriceRule, distanceKm float64, now time.Time) (models.Estimate, models.PricingSnapshot, error) {
	itemsTotal := 0.0
	breakdown := make([]models.BreakdownLine, 0, len(req.Items))

	for _, item := range req.Items {
		subtotal, line, err := ItemSubtotal(item, rule)
		if err != nil {
			return models.Estimate{}, models.PricingSnapshot{}, err
		}
		itemsTotal += subtotal
		breakdown = append(breakdown, line)
	}

	deliveryCharge := 0.0
	if req.FulfillmentType == models.FULFILLMENT_DELIVERY && req.CustomerLocation != nil {
		deliveryCharge = DeliveryChargeFor(rule, req.FulfillmentType, itemsTotal, distanceKm)
	}

	estimate := models.Estimate{
		ItemsTotal:     geo.Round2(itemsTotal),
		DeliveryCharge: geo.Round2(deliveryCharge),
		Total:          geo.Round2(itemsTotal + deliveryCharge),
		Breakdown:      breakdown,
		AppliedRuleId:  rule.RuleId,
	}

	snapshot := models.PricingSnapshot{
		AppliedRuleId: rule.RuleId,
		Rule:          rule,
		Breakdown:     breakdown,
		TakenAt:       now,
	}

	return estimate, snapshot, nil
}
