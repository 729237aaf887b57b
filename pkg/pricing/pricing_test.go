package pricing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
	"github.com/vaishnaviprints/printlogic/pkg/models"
	"github.com/vaishnaviprints/printlogic/pkg/pricing"
)

func testRule() models.PriceRule {
	return models.PriceRule{
		RuleId:        "rule_test1",
		Name:          "Standard",
		Active:        true,
		EffectiveFrom: time.Now().Add(-24 * time.Hour),
		PaperTypes: []models.PaperType{
			{Id: "a4_75gsm", Name: "A4 75 GSM", PerPageBW: 0.50, PerPageColor: 2.00},
			{Id: "a4_glossy", Name: "A4 Glossy", PerPageBW: 5.00, PerPageColor: 10.00},
		},
		LaminationPerSheet: 10.00,
		Binding: map[string]float64{
			"spiral":   25.00,
			"hardcover": 150.00,
		},
		Delivery: models.DeliveryCharge{BaseRate: 20.0, PerKmRate: 5.0, FreeAbove: 500.0},
	}
}

func TestItemSubtotalPagesTimesCopiesTimesRate(t *testing.T) {
	item := models.OrderItem{NumPages: 10, NumCopies: 2, PaperTypeId: "a4_75gsm", BindingType: "none"}

	subtotal, line, err := pricing.ItemSubtotal(item, testRule())
	require.NoError(t, err)
	assert.Equal(t, 10.00, subtotal)
	assert.Equal(t, 0.50, line.PerPageRate)
	assert.Equal(t, "A4 75 GSM", line.PaperType)
}

func TestItemSubtotalWithLaminationAndBinding(t *testing.T) {
	item := models.OrderItem{NumPages: 10, NumCopies: 2, PaperTypeId: "a4_75gsm", LaminationSheets: 5, BindingType: "none"}

	subtotal, _, err := pricing.ItemSubtotal(item, testRule())
	require.NoError(t, err)
	assert.Equal(t, 60.00, subtotal)

	item.BindingType = "spiral"
	subtotal, _, err = pricing.ItemSubtotal(item, testRule())
	require.NoError(t, err)
	assert.Equal(t, 85.00, subtotal)
}

func TestItemSubtotalColorRate(t *testing.T) {
	item := models.OrderItem{NumPages: 3, NumCopies: 1, PaperTypeId: "a4_75gsm", IsColor: true}

	subtotal, line, err := pricing.ItemSubtotal(item, testRule())
	require.NoError(t, err)
	assert.Equal(t, 6.00, subtotal)
	assert.True(t, line.Color)
}

func TestItemSubtotalUnknownPaperType(t *testing.T) {
	item := models.OrderItem{NumPages: 1, NumCopies: 1, PaperTypeId: "papyrus"}

	_, _, err := pricing.ItemSubtotal(item, testRule())
	assert.True(t, errors.Is(err, svcerror.ErrUnknownPaperType))
}

func TestItemSubtotalUnknownBindingType(t *testing.T) {
	item := models.OrderItem{NumPages: 1, NumCopies: 1, PaperTypeId: "a4_75gsm", BindingType: "glue"}

	_, _, err := pricing.ItemSubtotal(item, testRule())
	assert.True(t, errors.Is(err, svcerror.ErrUnknownBindingType))
}

func TestActiveRuleNoMatch(t *testing.T) {
	future := testRule()
	future.EffectiveFrom = time.Now().Add(time.Hour)

	inactive := testRule()
	inactive.Active = false

	_, err := pricing.ActiveRule([]models.PriceRule{future, inactive}, time.Now())
	assert.True(t, errors.Is(err, svcerror.ErrNoActiveRule))
}

func TestActiveRuleExpiredWindow(t *testing.T) {
	expired := testRule()
	to := time.Now().Add(-time.Hour)
	expired.EffectiveTo = &to

	_, err := pricing.ActiveRule([]models.PriceRule{expired}, time.Now())
	assert.True(t, errors.Is(err, svcerror.ErrNoActiveRule))
}

func TestActiveRuleLatestEffectiveFromWins(t *testing.T) {
	older := testRule()
	older.RuleId = "rule_old"
	older.EffectiveFrom = time.Now().Add(-48 * time.Hour)

	newer := testRule()
	newer.RuleId = "rule_new"
	newer.EffectiveFrom = time.Now().Add(-1 * time.Hour)

	// Order in the slice must not matter.
	rule, err := pricing.ActiveRule([]models.PriceRule{older, newer}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "rule_new", rule.RuleId)

	rule, err = pricing.ActiveRule([]models.PriceRule{newer, older}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "rule_new", rule.RuleId)
}

func TestDeliveryChargeZeroForPickup(t *testing.T) {
	charge := pricing.DeliveryChargeFor(testRule(), models.FULFILLMENT_PICKUP, 100.0, 8.0)
	assert.Equal(t, 0.0, charge)
}

func TestDeliveryChargeFreeAboveThreshold(t *testing.T) {
	charge := pricing.DeliveryChargeFor(testRule(), models.FULFILLMENT_DELIVERY, 500.0, 8.0)
	assert.Equal(t, 0.0, charge)
}

func TestDeliveryChargeBasePlusPerKm(t *testing.T) {
	charge := pricing.DeliveryChargeFor(testRule(), models.FULFILLMENT_DELIVERY, 100.0, 4.0)
	assert.Equal(t, 40.0, charge)
}

func TestEstimateWithRuleBreakdownAndSnapshot(t *testing.T) {
	req := models.EstimateRequest{
		Items: []models.OrderItem{
			{FileName: "thesis.pdf", NumPages: 10, NumCopies: 2, PaperTypeId: "a4_75gsm", LaminationSheets: 5, BindingType: "spiral"},
			{FileName: "cover.pdf", NumPages: 1, NumCopies: 2, PaperTypeId: "a4_glossy", IsColor: true},
		},
		FulfillmentType:  models.FULFILLMENT_DELIVERY,
		CustomerLocation: &models.Location{Latitude: 12.9716, Longitude: 77.5946},
	}

	now := time.Now()
	estimate, snapshot, err := pricing.EstimateWithRule(req, testRule(), 4.0, now)
	require.NoError(t, err)

	// 85.00 + 20.00 items, 20 + 4*5 delivery.
	assert.Equal(t, 105.00, estimate.ItemsTotal)
	assert.Equal(t, 40.00, estimate.DeliveryCharge)
	assert.Equal(t, 145.00, estimate.Total)
	assert.Len(t, estimate.Breakdown, 2)
	assert.Equal(t, "rule_test1", estimate.AppliedRuleId)

	assert.Equal(t, "rule_test1", snapshot.AppliedRuleId)
	assert.Equal(t, now, snapshot.TakenAt)
	assert.Len(t, snapshot.Breakdown, 2)
}

func TestEstimateMonotonicInPagesCopiesRate(t *testing.T) {
	rule := testRule()
	base := models.OrderItem{NumPages: 5, NumCopies: 2, PaperTypeId: "a4_75gsm"}

	baseTotal, _, err := pricing.ItemSubtotal(base, rule)
	require.NoError(t, err)

	morePages := base
	morePages.NumPages = 6
	got, _, err := pricing.ItemSubtotal(morePages, rule)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, baseTotal)

	moreCopies := base
	moreCopies.NumCopies = 3
	got, _, err = pricing.ItemSubtotal(moreCopies, rule)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, baseTotal)

	pricier := base
	pricier.PaperTypeId = "a4_glossy"
	got, _, err = pricing.ItemSubtotal(pricier, rule)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, baseTotal)
}
