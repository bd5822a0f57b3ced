package trip

import (
	"context"
	"fmt"
	"time"

	"github.com/jahua/data-warehouse/internal/db"
)

// Reader pulls raw pings for one extraction window from the ping store.
type Reader struct {
	db db.Querier
}

func NewReader(db db.Querier) *Reader {
	return &Reader{db: db}
}

// PingsBetween returns every ping observed in [start, end), ordered by
// vehicle and observation time. Rows without coordinates are left behind.
func (r *Reader) PingsBetween(ctx context.Context, start, end time.Time) ([]Ping, error) {
	rows, err := r.db.Query(ctx, `
		SELECT vehicle_id, COALESCE(provider_id, ''), lat, lon, observed_at
		FROM vehicle_pings
		WHERE observed_at >= $1 AND observed_at < $2
			AND lat IS NOT NULL AND lon IS NOT NULL
		ORDER BY vehicle_id, observed_at
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query pings: %w", err)
	}
	defer rows.Close()

	var pings []Ping
	for rows.Next() {
		var p Ping
		if err := rows.Scan(&p.VehicleID, &p.ProviderID, &p.Lat, &p.Lon, &p.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		pings = append(pings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pings: %w", err)
	}
	return pings, nil
}
