package ranking

import (
	"sort"

	"github.com/vaishnaviprints/printlogic/pkg/geo"
	"github.com/vaishnaviprints/printlogic/pkg/models"
)

const (
	WorkloadPenalty = 2.0

	// Widening radii offered when no vendor auto-accepts.
	SuggestionRadiusNearKm = 5.0
	SuggestionRadiusFarKm  = 10.0
)

var badgeWeights = map[string]float64{
	models.BADGE_PLATINUM: 0.5,
	models.BADGE_DIAMOND:  0.6,
	models.BADGE_GOLD:     0.7,
	models.BADGE_SILVER:   0.8,
	models.BADGE_BRONZE:   0.9,
	models.BADGE_NONE:     1.0,
}

func BadgeWeight(badge string) float64 {
	if w, ok := badgeWeights[badge]; ok {
		return w
	}
	return 1.0
}

// PriorityScore ranks a candidate; lower is better. Nearby, lightly loaded,
// highly badged vendors come first.
func PriorityScore(distanceKm float64, workload int64, badge string) float64 {
	return distanceKm*BadgeWeight(badge) + float64(workload)*WorkloadPenalty
}

type Candidate struct {
	Vendor        models.Vendor `json:"vendor"`
	DistanceKm    float64       `json:"distance_km"`
	PriorityScore float64       `json:"priority_score"`
}

// RankCandidates filters vendors that are active, open, and within the
// radius, ordered by priority score. Ties break by distance, then vendor id,
// so the ordering is deterministic across calls.
func RankCandidates(customer models.Location, vendors []models.Vendor, maxRadiusKm float64) []Candidate {
	eligible := make([]Candidate, 0, len(vendors))

	for _, vendor := range vendors {
		if !vendor.IsActive || !vendor.StoreOpen {
			continue
		}
		distance := geo.DistanceKm(
			customer.Latitude, customer.Longitude,
			vendor.Location.Latitude, vendor.Location.Longitude,
		)
		if distance > maxRadiusKm {
			continue
		}
		eligible = append(eligible, Candidate{
			Vendor:        vendor,
			DistanceKm:    distance,
			PriorityScore: PriorityScore(distance, vendor.CurrentWorkload, vendor.Badge),
		})
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].PriorityScore != eligible[j].PriorityScore {
			return eligible[i].PriorityScore < eligible[j].PriorityScore
		}
		if eligible[i].DistanceKm != eligible[j].DistanceKm {
			return eligible[i].DistanceKm < eligible[j].DistanceKm
		}
		return eligible[i].Vendor.VendorId < eligible[j].Vendor.VendorId
	})

	return eligible
}

type AutoAssignStatus string

const (
	AUTO_ASSIGNED             AutoAssignStatus = "auto_assigned"
	MANUAL_SELECTION_REQUIRED AutoAssignStatus = "manual_selection_required"
)

type Suggestion struct {
	RadiusKm   float64       `json:"radius_km"`
	Vendor     models.Vendor `json:"vendor"`
	DistanceKm float64       `json:"distance_km"`
}

type AutoAssignResult struct {
	Status      AutoAssignStatus `json:"status"`
	Vendor      *models.Vendor   `json:"vendor,omitempty"`
	DistanceKm  float64          `json:"distance_km,omitempty"`
	Suggestions []Suggestion     `json:"suggestions,omitempty"`
}

// AutoAssign returns the first active vendor whose own auto-accept radius
// covers the customer. First match in iteration order, not best match:
// vendors configure their own willingness radius, and a closer vendor with a
// smaller radius must not preempt one that opted in. When none qualifies,
// the nearest vendors at the 5 km and 10 km tiers are suggested for manual
// operator choice, deduplicated by id.
func AutoAssign(customer models.Location, vendors []models.Vendor) AutoAssignResult {
	for _, vendor := range vendors {
		if !vendor.IsActive {
			continue
		}
		distance := geo.DistanceKm(
			customer.Latitude, customer.Longitude,
			vendor.Location.Latitude, vendor.Location.Longitude,
		)
		if distance <= vendor.AutoAcceptRadiusKm {
			v := vendor
			return AutoAssignResult{
				Status:     AUTO_ASSIGNED,
				Vendor:     &v,
				DistanceKm: geo.Round2(distance),
			}
		}
	}

	var suggestions []Suggestion
	near, nearDist, nearOk := nearestVendor(customer, vendors, SuggestionRadiusNearKm)
	if nearOk {
		suggestions = append(suggestions, Suggestion{
			RadiusKm:   SuggestionRadiusNearKm,
			Vendor:     near,
			DistanceKm: geo.Round2(nearDist),
		})
	}
	far, farDist, farOk := nearestVendor(customer, vendors, SuggestionRadiusFarKm)
	if farOk && (!nearOk || far.VendorId != near.VendorId) {
		suggestions = append(suggestions, Suggestion{
			RadiusKm:   SuggestionRadiusFarKm,
			Vendor:     far,
			DistanceKm: geo.Round2(farDist),
		})
	}

	return AutoAssignResult{
		Status:      MANUAL_SELECTION_REQUIRED,
		Suggestions: suggestions,
	}
}

func nearestVendor(customer models.Location, vendors []models.Vendor, maxRadiusKm float64) (models.Vendor, float64, bool) {
	var nearest models.Vendor
	nearestDist := maxRadiusKm + 1
	found := false

	for _, vendor := range vendors {
		if !vendor.IsActive {
			continue
		}
		distance := geo.DistanceKm(
			customer.Latitude, customer.Longitude,
			vendor.Location.Latitude, vendor.Location.Longitude,
		)
		if distance <= maxRadiusKm && distance < nearestDist {
			nearest = vendor
			nearestDist = distance
			found = true
		}
	}

	return nearest, nearestDist, found
}
