package trip

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

func sampleTrip(vehicle string, start time.Time) Trip {
	return Trip{
		VehicleID:       vehicle,
		ProviderID:      "provider-a",
		TripStart:       start,
		TripEnd:         start.Add(30 * time.Minute),
		StartLat:        47.37,
		StartLon:        8.54,
		EndLat:          47.39,
		EndLon:          8.52,
		DurationMinutes: 30,
		DistanceKm:      2.4,
		SegmentCount:    3,
	}
}

func expectEnsureSchema(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS vehicle_trips`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	for _, idx := range []string{"vehicle_id", "provider_id", "trip_start", "municipality"} {
		mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_vehicle_trips_` + idx).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
}

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	expectEnsureSchema(mock)

	if err := NewMergeWriter(mock, 0).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnsureSchemaError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS vehicle_trips`).WillReturnError(errQuery)

	if err := NewMergeWriter(mock, 0).EnsureSchema(context.Background()); err == nil {
		t.Fatalf("expected schema error")
	}
}

func TestMergeTripsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	written, err := NewMergeWriter(mock, 0).MergeTrips(context.Background(), nil)
	if err != nil || written != 0 {
		t.Fatalf("expected no-op for empty batch, got %d %v", written, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database calls: %v", err)
	}
}

func TestMergeTripsSingleBatch(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	start := time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)
	trip := sampleTrip("bike-1", start)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO vehicle_trips`).
		WithArgs(trip.VehicleID, trip.ProviderID, trip.TripStart, trip.TripEnd,
			trip.StartLat, trip.StartLon, trip.EndLat, trip.EndLon,
			trip.DurationMinutes, trip.DistanceKm, trip.SegmentCount).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	written, err := NewMergeWriter(mock, 0).MergeTrips(context.Background(), []Trip{trip})
	if err != nil {
		t.Fatalf("merge trips: %v", err)
	}
	if written != 1 {
		t.Fatalf("expected 1 written, got %d", written)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMergeTripsChunksBatches(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	start := time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)
	trips := []Trip{
		sampleTrip("bike-1", start),
		sampleTrip("bike-2", start.Add(time.Hour)),
		sampleTrip("bike-3", start.Add(2*time.Hour)),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO vehicle_trips`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(`INSERT INTO vehicle_trips`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	written, err := NewMergeWriter(mock, 2).MergeTrips(context.Background(), trips)
	if err != nil {
		t.Fatalf("merge trips: %v", err)
	}
	if written != 3 {
		t.Fatalf("expected 3 written, got %d", written)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMergeTripsIdempotentReplay(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	start := time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)
	trip := sampleTrip("bike-1", start)
	w := NewMergeWriter(mock, 0)

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(`ON CONFLICT \(vehicle_id, trip_start\) DO UPDATE SET`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		written, err := w.MergeTrips(context.Background(), []Trip{trip})
		if err != nil || written != 1 {
			t.Fatalf("replay %d: %d written, err %v", i, written, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMergeTripsBeginError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errQuery)

	if _, err := NewMergeWriter(mock, 0).MergeTrips(context.Background(), []Trip{sampleTrip("bike-1", time.Now())}); err == nil {
		t.Fatalf("expected begin error")
	}
}

func TestMergeTripsExecErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO vehicle_trips`).WillReturnError(errQuery)
	mock.ExpectRollback()

	if _, err := NewMergeWriter(mock, 0).MergeTrips(context.Background(), []Trip{sampleTrip("bike-1", time.Now())}); err == nil {
		t.Fatalf("expected merge error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMergeTripsCommitError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO vehicle_trips`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit().WillReturnError(errQuery)

	if _, err := NewMergeWriter(mock, 0).MergeTrips(context.Background(), []Trip{sampleTrip("bike-1", time.Now())}); err == nil {
		t.Fatalf("expected commit error")
	}
}

func TestUpsertStatementPlaceholders(t *testing.T) {
	start := time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)
	sql, args := upsertStatement([]Trip{
		sampleTrip("bike-1", start),
		sampleTrip("bike-2", start.Add(time.Hour)),
	})

	if len(args) != 22 {
		t.Fatalf("expected 22 args, got %d", len(args))
	}
	if !strings.Contains(sql, "($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)") {
		t.Fatalf("missing first placeholder tuple: %s", sql)
	}
	if !strings.Contains(sql, "($12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)") {
		t.Fatalf("missing second placeholder tuple: %s", sql)
	}
	if !strings.Contains(sql, "ON CONFLICT (vehicle_id, trip_start) DO UPDATE SET") {
		t.Fatalf("missing conflict clause: %s", sql)
	}
}
