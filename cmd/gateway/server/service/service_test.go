package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaishnaviprints/printlogic/cmd/gateway/server/service"
	"github.com/vaishnaviprints/printlogic/pkg/database"
	"github.com/vaishnaviprints/printlogic/pkg/models"
	"github.com/vaishnaviprints/printlogic/pkg/pricing"
	"github.com/vaishnaviprints/printlogic/pkg/ranking"
	"github.com/vaishnaviprints/printlogic/pkg/repository"
)

func newTestService(t *testing.T) (*service.Service, *database.MemoryStore) {
	t.Helper()
	store := database.NewMemoryStore()
	ruleCache := repository.NewRuleCache(
		repository.NewMemoryRepo(func(r models.PriceRule) string { return r.RuleId }),
		store,
	)
	svc := &service.Service{
		Store:   store,
		Pricing: pricing.NewEngine(ruleCache),
		Rules:   ruleCache,
	}
	return svc, store
}

func ruleWithRate(name string, perPageBW float64, effectiveFrom time.Time) models.PriceRule {
	return models.PriceRule{
		Name:          name,
		Active:        true,
		EffectiveFrom: effectiveFrom,
		PaperTypes: []models.PaperType{
			{Id: "a4_75gsm", Name: "A4 75 GSM", PerPageBW: perPageBW, PerPageColor: 2.00},
		},
		Binding:  map[string]float64{"spiral": 25.00},
		Delivery: models.DeliveryCharge{BaseRate: 20.0, PerKmRate: 5.0, FreeAbove: 500.0},
	}
}

func pickupEstimateRequest(loc *models.Location) models.EstimateRequest {
	return models.EstimateRequest{
		Items: []models.OrderItem{
			{FileName: "doc.pdf", NumPages: 10, NumCopies: 1, PaperTypeId: "a4_75gsm"},
		},
		FulfillmentType:  models.FULFILLMENT_PICKUP,
		CustomerLocation: loc,
	}
}

func TestNewRulePricesLaterEstimates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	old, err := svc.CreateRule(ctx, ruleWithRate("standard", 0.50, time.Now().Add(-24*time.Hour)))
	require.NoError(t, err)

	// warms the rule cache
	first, err := svc.Estimate(ctx, pickupEstimateRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, 5.00, first.ItemsTotal)
	assert.Equal(t, old.RuleId, first.AppliedRuleId)

	updated, err := svc.CreateRule(ctx, ruleWithRate("revised", 1.00, time.Now().Add(-1*time.Hour)))
	require.NoError(t, err)

	second, err := svc.Estimate(ctx, pickupEstimateRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, updated.RuleId, second.AppliedRuleId)
	assert.Equal(t, 10.00, second.ItemsTotal)
}

func TestPickupEstimateAutoAssignsVendor(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	_, err := svc.CreateRule(ctx, ruleWithRate("standard", 0.50, time.Now().Add(-24*time.Hour)))
	require.NoError(t, err)

	require.NoError(t, store.SaveVendor(ctx, models.Vendor{
		VendorId: "v-1", Name: "Quick Prints", Badge: models.BADGE_NONE,
		Location:           models.Location{Latitude: 12.9750, Longitude: 77.5950},
		AutoAcceptRadiusKm: 5, StoreOpen: true, IsActive: true,
	}))

	loc := models.Location{Latitude: 12.9716, Longitude: 77.5946, City: "Bengaluru"}
	result, err := svc.Estimate(ctx, pickupEstimateRequest(&loc))
	require.NoError(t, err)

	require.NotNil(t, result.VendorMatch)
	assert.Equal(t, ranking.AUTO_ASSIGNED, result.VendorMatch.Status)
	require.NotNil(t, result.VendorMatch.Vendor)
	assert.Equal(t, "v-1", result.VendorMatch.Vendor.VendorId)
}

func TestPickupEstimateSuggestsWhenNoVendorAutoAccepts(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	_, err := svc.CreateRule(ctx, ruleWithRate("standard", 0.50, time.Now().Add(-24*time.Hour)))
	require.NoError(t, err)

	// roughly 3 km away, willing radius too small to auto-accept
	require.NoError(t, store.SaveVendor(ctx, models.Vendor{
		VendorId: "v-far", Name: "City Press", Badge: models.BADGE_NONE,
		Location:           models.Location{Latitude: 12.9960, Longitude: 77.6100},
		AutoAcceptRadiusKm: 1, StoreOpen: true, IsActive: true,
	}))

	loc := models.Location{Latitude: 12.9716, Longitude: 77.5946, City: "Bengaluru"}
	result, err := svc.Estimate(ctx, pickupEstimateRequest(&loc))
	require.NoError(t, err)

	require.NotNil(t, result.VendorMatch)
	assert.Equal(t, ranking.MANUAL_SELECTION_REQUIRED, result.VendorMatch.Status)
	require.NotEmpty(t, result.VendorMatch.Suggestions)
	assert.Equal(t, "v-far", result.VendorMatch.Suggestions[0].Vendor.VendorId)
}

func TestDeliveryEstimateHasNoVendorMatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreateRule(ctx, ruleWithRate("standard", 0.50, time.Now().Add(-24*time.Hour)))
	require.NoError(t, err)

	loc := models.Location{Latitude: 12.9716, Longitude: 77.5946}
	req := pickupEstimateRequest(&loc)
	req.FulfillmentType = models.FULFILLMENT_DELIVERY

	result, err := svc.Estimate(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, result.VendorMatch)
}
