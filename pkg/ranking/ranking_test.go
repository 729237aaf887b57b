package ranking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaishnaviprints/printlogic/pkg/models"
	"github.com/vaishnaviprints/printlogic/pkg/ranking"
)

var customer = models.Location{Latitude: 12.9716, Longitude: 77.5946}

func vendorAt(id string, lat, lon float64) models.Vendor {
	return models.Vendor{
		VendorId:           id,
		Badge:              models.BADGE_NONE,
		Location:           models.Location{Latitude: lat, Longitude: lon},
		StoreOpen:          true,
		IsActive:           true,
		AutoAcceptRadiusKm: 5.0,
	}
}

func TestRankCandidatesFiltersClosedAndOutOfRadius(t *testing.T) {
	closed := vendorAt("vendor_closed", 12.9720, 77.5950)
	closed.StoreOpen = false

	inactive := vendorAt("vendor_inactive", 12.9720, 77.5950)
	inactive.IsActive = false

	farAway := vendorAt("vendor_far", 13.2000, 77.9000) // well past 10 km
	near := vendorAt("vendor_near", 12.9720, 77.5950)

	ranked := ranking.RankCandidates(customer, []models.Vendor{closed, inactive, farAway, near}, 10.0)

	require.Len(t, ranked, 1)
	assert.Equal(t, "vendor_near", ranked[0].Vendor.VendorId)
	for _, c := range ranked {
		assert.True(t, c.Vendor.StoreOpen)
		assert.LessOrEqual(t, c.DistanceKm, 10.0)
	}
}

func TestRankCandidatesWorkloadPenalty(t *testing.T) {
	busy := vendorAt("vendor_busy", 12.9720, 77.5950)
	busy.CurrentWorkload = 5

	idle := vendorAt("vendor_idle", 12.9800, 77.6000) // slightly farther, no load
	ranked := ranking.RankCandidates(customer, []models.Vendor{busy, idle}, 10.0)

	require.Len(t, ranked, 2)
	assert.Equal(t, "vendor_idle", ranked[0].Vendor.VendorId)
}

func TestRankCandidatesBadgeWeight(t *testing.T) {
	plain := vendorAt("vendor_plain", 12.9900, 77.6000)
	platinum := vendorAt("vendor_platinum", 12.9950, 77.6050) // farther but platinum
	platinum.Badge = models.BADGE_PLATINUM

	ranked := ranking.RankCandidates(customer, []models.Vendor{plain, platinum}, 10.0)

	require.Len(t, ranked, 2)
	assert.Equal(t, "vendor_platinum", ranked[0].Vendor.VendorId)
}

func TestRankCandidatesDeterministicTieBreak(t *testing.T) {
	a := vendorAt("vendor_a", 12.9720, 77.5950)
	b := vendorAt("vendor_b", 12.9720, 77.5950)

	first := ranking.RankCandidates(customer, []models.Vendor{b, a}, 10.0)
	second := ranking.RankCandidates(customer, []models.Vendor{a, b}, 10.0)

	require.Len(t, first, 2)
	assert.Equal(t, "vendor_a", first[0].Vendor.VendorId)
	assert.Equal(t, first[0].Vendor.VendorId, second[0].Vendor.VendorId)
}

func TestAutoAssignFirstMatchWins(t *testing.T) {
	// Farther vendor appears first and opted in; the closer one with a tiny
	// radius must not preempt it.
	optedIn := vendorAt("vendor_opted_in", 12.9900, 77.6100)
	optedIn.AutoAcceptRadiusKm = 10.0

	closeButNarrow := vendorAt("vendor_narrow", 12.9717, 77.5947)
	closeButNarrow.AutoAcceptRadiusKm = 0.001

	result := ranking.AutoAssign(customer, []models.Vendor{optedIn, closeButNarrow})

	require.Equal(t, ranking.AUTO_ASSIGNED, result.Status)
	assert.Equal(t, "vendor_opted_in", result.Vendor.VendorId)
}

func TestAutoAssignWithinOwnRadius(t *testing.T) {
	vendor := vendorAt("vendor_close", 12.9717, 77.5947) // ~0.01 km away
	vendor.AutoAcceptRadiusKm = 5.0

	result := ranking.AutoAssign(customer, []models.Vendor{vendor})

	require.Equal(t, ranking.AUTO_ASSIGNED, result.Status)
	assert.Equal(t, "vendor_close", result.Vendor.VendorId)
	assert.Less(t, result.DistanceKm, 5.0)
}

func TestAutoAssignFallbackSuggestions(t *testing.T) {
	// Only vendor is ~7 km out with a 5 km auto-accept radius: no
	// auto-assignment, but it should surface at the 10 km tier.
	vendor := vendorAt("vendor_hebbal", 13.0358, 77.5970)
	vendor.AutoAcceptRadiusKm = 5.0

	result := ranking.AutoAssign(customer, []models.Vendor{vendor})

	require.Equal(t, ranking.MANUAL_SELECTION_REQUIRED, result.Status)
	require.NotEmpty(t, result.Suggestions)
	assert.Equal(t, 10.0, result.Suggestions[0].RadiusKm)
	assert.Equal(t, "vendor_hebbal", result.Suggestions[0].Vendor.VendorId)
}

func TestAutoAssignSuggestionsDeduplicated(t *testing.T) {
	// A vendor inside 5 km qualifies for both tiers but must appear once.
	vendor := vendorAt("vendor_single", 12.9900, 77.6000)
	vendor.AutoAcceptRadiusKm = 0.001

	result := ranking.AutoAssign(customer, []models.Vendor{vendor})

	require.Equal(t, ranking.MANUAL_SELECTION_REQUIRED, result.Status)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, 5.0, result.Suggestions[0].RadiusKm)
}

func TestPriorityScoreFormula(t *testing.T) {
	assert.Equal(t, 7.0, ranking.PriorityScore(3.0, 2, models.BADGE_NONE))
	assert.Equal(t, 1.5, ranking.PriorityScore(3.0, 0, models.BADGE_PLATINUM))
	assert.Equal(t, 1.0, ranking.BadgeWeight("unheard-of"))
}
