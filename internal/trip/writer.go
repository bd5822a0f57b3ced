package trip

import (
	"context"
	"fmt"
	"strings"

	"github.com/jahua/data-warehouse/internal/db"
)

const defaultMergeBatchSize = 500

// MergeWriter lands validated trips in the warehouse.
type MergeWriter struct {
	db        db.TxQuerier
	batchSize int
}

func NewMergeWriter(db db.TxQuerier, batchSize int) *MergeWriter {
	if batchSize <= 0 {
		batchSize = defaultMergeBatchSize
	}
	return &MergeWriter{db: db, batchSize: batchSize}
}

// EnsureSchema creates the destination table and its indexes when missing.
// The enrichment columns (municipality, weather, air quality) belong to
// downstream jobs and are never written here.
func (w *MergeWriter) EnsureSchema(ctx context.Context) error {
	statements := []string{`
		CREATE TABLE IF NOT EXISTS vehicle_trips (
			trip_id BIGSERIAL PRIMARY KEY,
			vehicle_id VARCHAR(255) NOT NULL,
			provider_id VARCHAR(255),
			trip_start TIMESTAMPTZ NOT NULL,
			trip_end TIMESTAMPTZ,
			start_lat DOUBLE PRECISION,
			start_lon DOUBLE PRECISION,
			end_lat DOUBLE PRECISION,
			end_lon DOUBLE PRECISION,
			total_duration_min DOUBLE PRECISION,
			total_distance_km DOUBLE PRECISION,
			segment_count INTEGER,
			municipality VARCHAR(255),
			canton VARCHAR(255),
			vehicle_type VARCHAR(50),
			city VARCHAR(255),
			temperature DOUBLE PRECISION,
			humidity DOUBLE PRECISION,
			aqi DOUBLE PRECISION,
			pm25 DOUBLE PRECISION,
			CONSTRAINT vehicle_trips_vehicle_start_key UNIQUE (vehicle_id, trip_start)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicle_trips_vehicle_id ON vehicle_trips (vehicle_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicle_trips_provider_id ON vehicle_trips (provider_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicle_trips_trip_start ON vehicle_trips (trip_start)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicle_trips_municipality ON vehicle_trips (municipality)`,
	}
	for _, stmt := range statements {
		if _, err := w.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure warehouse schema: %w", err)
		}
	}
	return nil
}

// MergeTrips upserts the batch inside a single transaction. Rows conflicting
// on (vehicle_id, trip_start) are overwritten, and the whole batch commits or
// rolls back as one unit.
func (w *MergeWriter) MergeTrips(ctx context.Context, trips []Trip) (int, error) {
	if len(trips) == 0 {
		return 0, nil
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback(ctx)

	written := 0
	for start := 0; start < len(trips); start += w.batchSize {
		end := start + w.batchSize
		if end > len(trips) {
			end = len(trips)
		}
		chunk := trips[start:end]
		sql, args := upsertStatement(chunk)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return 0, fmt.Errorf("merge trips: %w", err)
		}
		written += len(chunk)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit merge: %w", err)
	}
	return written, nil
}

func upsertStatement(trips []Trip) (string, []any) {
	const cols = 11
	var sb strings.Builder
	sb.WriteString(`INSERT INTO vehicle_trips
		(vehicle_id, provider_id, trip_start, trip_end, start_lat, start_lon, end_lat, end_lon, total_duration_min, total_distance_km, segment_count)
		VALUES `)

	args := make([]any, 0, len(trips)*cols)
	for i, t := range trips {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := 1; j <= cols; j++ {
			if j > 1 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "$%d", i*cols+j)
		}
		sb.WriteByte(')')
		args = append(args,
			t.VehicleID, t.ProviderID, t.TripStart, t.TripEnd,
			t.StartLat, t.StartLon, t.EndLat, t.EndLon,
			t.DurationMinutes, t.DistanceKm, t.SegmentCount)
	}

	sb.WriteString(`
		ON CONFLICT (vehicle_id, trip_start) DO UPDATE SET
			provider_id = EXCLUDED.provider_id,
			trip_end = EXCLUDED.trip_end,
			start_lat = EXCLUDED.start_lat,
			start_lon = EXCLUDED.start_lon,
			end_lat = EXCLUDED.end_lat,
			end_lon = EXCLUDED.end_lon,
			total_duration_min = EXCLUDED.total_duration_min,
			total_distance_km = EXCLUDED.total_distance_km,
			segment_count = EXCLUDED.segment_count`)

	return sb.String(), args
}
