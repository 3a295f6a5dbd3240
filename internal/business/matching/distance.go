package matching

import (
	"math"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// EarthRadiusKm is the mean Earth radius used by HaversineKm.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between a and b. ok is false when either
// point is missing; callers must treat that as unknown distance, not zero.
func HaversineKm(a, b *model.Location) (km float64, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h a hair past 1 for antipodal points
	h = math.Min(1, h)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h)), true
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
