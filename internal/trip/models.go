package trip

import "time"

// Ping is one raw GPS observation from the ping store.
type Ping struct {
	VehicleID  string    `json:"vehicle_id"`
	ProviderID string    `json:"provider_id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	ObservedAt time.Time `json:"observed_at"`
}

// PingPair links two consecutive observations of one vehicle.
type PingPair struct {
	From           Ping
	To             Ping
	ElapsedMinutes float64
	DistanceKm     float64
}

// Candidate is a maximal run of consecutive in-trip pairs for one vehicle.
type Candidate struct {
	VehicleID  string
	ProviderID string
	Pairs      []PingPair
}

// Trip is one assembled ride, keyed by (vehicle_id, trip_start) in the
// warehouse. Duration and distance are sums of the per-pair values, not
// end minus start.
type Trip struct {
	VehicleID       string    `json:"vehicle_id"`
	ProviderID      string    `json:"provider_id"`
	TripStart       time.Time `json:"trip_start"`
	TripEnd         time.Time `json:"trip_end"`
	StartLat        float64   `json:"start_lat"`
	StartLon        float64   `json:"start_lon"`
	EndLat          float64   `json:"end_lat"`
	EndLon          float64   `json:"end_lon"`
	DurationMinutes float64   `json:"total_duration_min"`
	DistanceKm      float64   `json:"total_distance_km"`
	SegmentCount    int       `json:"segment_count"`
}

// Thresholds bound what counts as riding. A pair belongs to a trip when the
// vehicle moved and the gap stayed inside [MinPairMinutes, MaxPairMinutes],
// both ends inclusive. Assembled trips must land inside [MinTripMinutes,
// MaxTripMinutes], cover more than MinDistanceKm and contain at least
// MinSegments pairs.
type Thresholds struct {
	MinPairMinutes float64
	MaxPairMinutes float64
	MinTripMinutes float64
	MaxTripMinutes float64
	MinDistanceKm  float64
	MinSegments    int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinPairMinutes: 1,
		MaxPairMinutes: 60,
		MinTripMinutes: 1,
		MaxTripMinutes: 60,
		MinDistanceKm:  0,
		MinSegments:    2,
	}
}
