package air

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jahua/data-warehouse/internal/db"

	log "github.com/sirupsen/logrus"
)

// maxConcurrentFetches bounds parallel WAQI requests per collection round.
const maxConcurrentFetches = 3

// cityFeeds maps the stored city key to its WAQI station name.
var cityFeeds = map[string]string{
	"zurich":   "Zurich",
	"lucerne":  "Lucerne",
	"geneva":   "Geneva",
	"basel":    "Basel",
	"bern":     "Bern",
	"lausanne": "Lausanne",
}

const createAirTable = `CREATE TABLE IF NOT EXISTS air_quality (
	id          SERIAL PRIMARY KEY,
	city        VARCHAR(50),
	aqi         DOUBLE PRECISION,
	temperature DOUBLE PRECISION,
	humidity    DOUBLE PRECISION,
	pm25        DOUBLE PRECISION,
	observed_at TIMESTAMPTZ
)`

const createAirIndex = `CREATE INDEX IF NOT EXISTS idx_air_city_observed ON air_quality (city, observed_at)`

const insertAirRow = `INSERT INTO air_quality (city, aqi, temperature, humidity, pm25, observed_at) VALUES ($1, $2, $3, $4, $5, $6)`

// Measurement is one stored city row, echoed in the collection result.
type Measurement struct {
	City        string   `json:"city"`
	AQI         float64  `json:"aqi"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	PM25        *float64 `json:"pm25"`
}

// Result reports one collection round.
type Result struct {
	Cities      []Measurement `json:"cities_processed"`
	Failed      []string      `json:"failed_cities"`
	CollectedAt time.Time     `json:"collected_at"`
}

// Service fans city feeds out over a bounded worker set and stores whatever
// came back. A failed city never stops the others.
type Service struct {
	db     db.Querier
	client *Client
	nowFn  func() time.Time
}

func NewService(database db.Querier, client *Client) *Service {
	return &Service{db: database, client: client, nowFn: time.Now}
}

func (s *Service) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createAirTable); err != nil {
		return fmt.Errorf("ensure air_quality: %w", err)
	}
	if _, err := s.db.Exec(ctx, createAirIndex); err != nil {
		return fmt.Errorf("ensure air_quality index: %w", err)
	}
	return nil
}

// Collect fetches every city feed with at most maxConcurrentFetches in
// flight and inserts the collected rows in city order.
func (s *Service) Collect(ctx context.Context) (Result, error) {
	if s.client.token == "" {
		return Result{}, errors.New("waqi api token not configured")
	}

	observedAt := s.nowFn().UTC()
	result := Result{Cities: []Measurement{}, Failed: []string{}, CollectedAt: observedAt}

	type outcome struct {
		key     string
		reading Reading
		err     error
	}

	sem := make(chan struct{}, maxConcurrentFetches)
	outcomes := make(chan outcome, len(cityFeeds))
	var wg sync.WaitGroup
	for key, station := range cityFeeds {
		wg.Add(1)
		go func(key, station string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			reading, err := s.client.Feed(ctx, station)
			outcomes <- outcome{key: key, reading: reading, err: err}
		}(key, station)
	}
	wg.Wait()
	close(outcomes)

	collected := make([]Measurement, 0, len(cityFeeds))
	for out := range outcomes {
		if out.err != nil {
			log.WithField("city", out.key).WithError(out.err).Warn("air feed failed")
			result.Failed = append(result.Failed, out.key)
			continue
		}
		collected = append(collected, Measurement{
			City:        out.key,
			AQI:         out.reading.AQI,
			Temperature: out.reading.Temperature,
			Humidity:    out.reading.Humidity,
			PM25:        out.reading.PM25,
		})
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].City < collected[j].City })

	for _, m := range collected {
		if _, err := s.db.Exec(ctx, insertAirRow,
			m.City, m.AQI, m.Temperature, m.Humidity, m.PM25, observedAt); err != nil {
			log.WithField("city", m.City).WithError(err).Warn("air insert failed")
			result.Failed = append(result.Failed, m.City)
			continue
		}
		result.Cities = append(result.Cities, m)
	}
	sort.Strings(result.Failed)

	log.WithFields(log.Fields{
		"cities": len(result.Cities),
		"failed": len(result.Failed),
	}).Info("air quality collection finished")
	return result, nil
}
