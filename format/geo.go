package format

import (
	"math"
	"slices"

	"marketbot/pkg/market"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Distance returns the Haversine great-circle distance in kilometers
// between two points given in degrees.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Ranked is an advertisement annotated with its distance from a reference point.
// DistanceKm is nil when the ad has no coordinates.
type Ranked struct {
	Ad         *market.Advertisement
	DistanceKm *float64
}

// ByDistance annotates ads with their distance from (lat, lng), keeps those
// within maxKm when maxKm is non-nil, and sorts ascending. Ads without
// coordinates sort last and are dropped whenever a threshold is given.
// Equal distances keep their input order.
func ByDistance(ads []*market.Advertisement, lat, lng float64, maxKm *float64) []Ranked {
	out := make([]Ranked, 0, len(ads))
	for _, ad := range ads {
		r := Ranked{Ad: ad}
		if ad.Location.HasCoordinates() {
			d := Distance(lat, lng, *ad.Location.Lat, *ad.Location.Lng)
			r.DistanceKm = &d
		}
		if maxKm != nil && (r.DistanceKm == nil || *r.DistanceKm > *maxKm) {
			continue
		}
		out = append(out, r)
	}

	slices.SortStableFunc(out, func(a, b Ranked) int {
		switch {
		case a.DistanceKm == nil && b.DistanceKm == nil:
			return 0
		case a.DistanceKm == nil:
			return 1
		case b.DistanceKm == nil:
			return -1
		}
		if *a.DistanceKm < *b.DistanceKm {
			return -1
		}
		if *a.DistanceKm > *b.DistanceKm {
			return 1
		}
		return 0
	})
	return out
}
