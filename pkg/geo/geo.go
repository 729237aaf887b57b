package geo

import "math"

// Earth radius in kilometers.
const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two coordinates
// using the haversine formula. Precondition: |lat| <= 90, |lon| <= 180;
// out-of-range input is not checked.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := radians(lat1)
	lat2Rad := radians(lat2)
	deltaLat := radians(lat2 - lat1)
	deltaLon := radians(lon2 - lon1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Round2 rounds to two decimal places, half away from zero. Shared by
// currency amounts and distances quoted in payloads.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
