package trip

import (
	"math"
	"sort"

	"github.com/jahua/data-warehouse/internal/shared/geo"
)

// Segmenter partitions raw pings into per-vehicle runs of riding and decides
// which assembled trips are worth keeping.
type Segmenter struct {
	thresholds Thresholds
}

func NewSegmenter(thresholds Thresholds) *Segmenter {
	return &Segmenter{thresholds: thresholds}
}

// SegmentStats counts what happened during segmentation.
type SegmentStats struct {
	Pings      int
	Malformed  int
	Vehicles   int
	Candidates int
}

// Candidates groups pings by vehicle, orders each group by observation time
// and cuts the consecutive pairs into maximal runs of in-trip pairs. Arrival
// order of the input does not matter. Malformed pings are dropped and
// counted, never fatal.
func (s *Segmenter) Candidates(pings []Ping) ([]Candidate, SegmentStats) {
	stats := SegmentStats{Pings: len(pings)}

	byVehicle := map[string][]Ping{}
	for _, p := range pings {
		if !usablePing(p) {
			stats.Malformed++
			continue
		}
		byVehicle[p.VehicleID] = append(byVehicle[p.VehicleID], p)
	}

	ids := make([]string, 0, len(byVehicle))
	for id := range byVehicle {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	stats.Vehicles = len(ids)

	var candidates []Candidate
	for _, id := range ids {
		candidates = append(candidates, s.vehicleRuns(byVehicle[id])...)
	}
	stats.Candidates = len(candidates)
	return candidates, stats
}

// vehicleRuns pairs each ping with its predecessor and starts a new run at
// every pair that does not look like riding. Pings sharing a timestamp with
// their predecessor never pair; the later one is skipped.
func (s *Segmenter) vehicleRuns(pings []Ping) []Candidate {
	if len(pings) < 2 {
		return nil
	}
	sort.SliceStable(pings, func(i, j int) bool {
		return pings[i].ObservedAt.Before(pings[j].ObservedAt)
	})

	var runs []Candidate
	var current []PingPair
	prev := pings[0]
	for _, p := range pings[1:] {
		if !p.ObservedAt.After(prev.ObservedAt) {
			continue
		}
		pair := newPair(prev, p)
		prev = p
		if s.inTrip(pair) {
			current = append(current, pair)
			continue
		}
		if len(current) > 0 {
			runs = append(runs, newCandidate(current))
			current = nil
		}
	}
	if len(current) > 0 {
		runs = append(runs, newCandidate(current))
	}
	return runs
}

// inTrip reports whether a pair shows actual riding: the position changed and
// the gap between observations stayed inside the pair window.
func (s *Segmenter) inTrip(p PingPair) bool {
	if p.ElapsedMinutes < s.thresholds.MinPairMinutes || p.ElapsedMinutes > s.thresholds.MaxPairMinutes {
		return false
	}
	return p.From.Lat != p.To.Lat || p.From.Lon != p.To.Lon
}

// Aggregate folds a candidate's pairs into one trip: boundary times and
// coordinates from the first and last pair, totals summed across pairs.
func Aggregate(c Candidate) Trip {
	first := c.Pairs[0]
	last := c.Pairs[len(c.Pairs)-1]

	t := Trip{
		VehicleID:    c.VehicleID,
		ProviderID:   c.ProviderID,
		TripStart:    first.From.ObservedAt,
		TripEnd:      last.To.ObservedAt,
		StartLat:     first.From.Lat,
		StartLon:     first.From.Lon,
		EndLat:       last.To.Lat,
		EndLon:       last.To.Lon,
		SegmentCount: len(c.Pairs),
	}
	for _, p := range c.Pairs {
		t.DurationMinutes += p.ElapsedMinutes
		t.DistanceKm += p.DistanceKm
	}
	return t
}

// Validate reports whether an aggregated trip is worth writing. Rejection is
// filtering, not an error.
func (s *Segmenter) Validate(t Trip) bool {
	th := s.thresholds
	return t.DurationMinutes >= th.MinTripMinutes &&
		t.DurationMinutes <= th.MaxTripMinutes &&
		t.DistanceKm > th.MinDistanceKm &&
		t.SegmentCount >= th.MinSegments
}

func newPair(from, to Ping) PingPair {
	return PingPair{
		From:           from,
		To:             to,
		ElapsedMinutes: geo.ElapsedMinutes(from.ObservedAt, to.ObservedAt),
		DistanceKm:     geo.HaversineKm(from.Lat, from.Lon, to.Lat, to.Lon),
	}
}

func newCandidate(pairs []PingPair) Candidate {
	first := pairs[0].From
	return Candidate{VehicleID: first.VehicleID, ProviderID: first.ProviderID, Pairs: pairs}
}

func usablePing(p Ping) bool {
	if p.VehicleID == "" || p.ObservedAt.IsZero() {
		return false
	}
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}
