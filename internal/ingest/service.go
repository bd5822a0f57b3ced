package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jahua/data-warehouse/internal/db"

	log "github.com/sirupsen/logrus"
)

const insertChunkSize = 500

const createPingsTable = `CREATE TABLE IF NOT EXISTS vehicle_pings (
	vehicle_id  VARCHAR(100) NOT NULL,
	provider_id VARCHAR(100),
	lat         DOUBLE PRECISION,
	lon         DOUBLE PRECISION,
	is_reserved BOOLEAN,
	is_disabled BOOLEAN,
	observed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (vehicle_id, observed_at)
)`

// Result reports one ingest round.
type Result struct {
	BikesFetched  int       `json:"bikes_fetched"`
	PingsInserted int64     `json:"pings_inserted"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Service pulls the GBFS feed and lands one ping per bike in the source store.
type Service struct {
	db     db.Querier
	client *Client
	nowFn  func() time.Time
}

func NewService(database db.Querier, client *Client) *Service {
	return &Service{db: database, client: client, nowFn: time.Now}
}

func (s *Service) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createPingsTable); err != nil {
		return fmt.Errorf("ensure vehicle_pings: %w", err)
	}
	return nil
}

// Collect fetches the feed once and stores every bike position stamped with
// the fetch time. The (vehicle_id, observed_at) key makes replays no-ops.
func (s *Service) Collect(ctx context.Context) (Result, error) {
	feed, err := s.client.FreeBikeStatus(ctx)
	if err != nil {
		return Result{}, err
	}

	observedAt := s.nowFn().UTC()
	result := Result{BikesFetched: len(feed.Data.Bikes), CollectedAt: observedAt}

	bikes := make([]Bike, 0, len(feed.Data.Bikes))
	for _, b := range feed.Data.Bikes {
		if b.BikeID == "" {
			continue
		}
		bikes = append(bikes, b)
	}

	for start := 0; start < len(bikes); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(bikes) {
			end = len(bikes)
		}
		stmt, args := insertStatement(bikes[start:end], observedAt)
		tag, err := s.db.Exec(ctx, stmt, args...)
		if err != nil {
			return result, fmt.Errorf("insert pings: %w", err)
		}
		result.PingsInserted += tag.RowsAffected()
	}

	log.WithFields(log.Fields{
		"bikes":    result.BikesFetched,
		"inserted": result.PingsInserted,
	}).Info("bike feed ingested")
	return result, nil
}

func insertStatement(bikes []Bike, observedAt time.Time) (string, []any) {
	const cols = 7
	var sb strings.Builder
	sb.WriteString("INSERT INTO vehicle_pings (vehicle_id, provider_id, lat, lon, is_reserved, is_disabled, observed_at) VALUES ")
	args := make([]any, 0, len(bikes)*cols)
	for i, b := range bikes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 1; j <= cols; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*cols+j)
		}
		sb.WriteString(")")
		args = append(args, b.BikeID, b.ProviderID, b.Lat, b.Lon, b.IsReserved, b.IsDisabled, observedAt)
	}
	sb.WriteString(" ON CONFLICT (vehicle_id, observed_at) DO NOTHING")
	return sb.String(), args
}
