package geo

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// WGS84 coordinates. The arcsine argument is clamped to [-1, 1] so
// floating-point drift near antipodal points never yields NaN.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Pow(math.Sin(dLon/2), 2)

	arg := math.Min(1, math.Max(-1, math.Sqrt(a)))
	return 2 * earthRadiusKm * math.Asin(arg)
}

// ElapsedMinutes returns the signed minutes from from to to.
func ElapsedMinutes(from, to time.Time) float64 {
	return to.Sub(from).Minutes()
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
