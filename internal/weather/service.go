package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jahua/data-warehouse/internal/db"

	log "github.com/sirupsen/logrus"
)

const createWeatherTable = `CREATE TABLE IF NOT EXISTS weather_data (
	id          SERIAL PRIMARY KEY,
	city        VARCHAR(50),
	aqi         INTEGER,
	temperature DOUBLE PRECISION,
	humidity    INTEGER,
	pm25        DOUBLE PRECISION,
	observed_at TIMESTAMPTZ
)`

const createWeatherIndex = `CREATE INDEX IF NOT EXISTS idx_weather_city_observed ON weather_data (city, observed_at)`

const insertWeatherRow = `INSERT INTO weather_data (city, aqi, temperature, humidity, pm25, observed_at) VALUES ($1, $2, $3, $4, $5, $6)`

// Result reports one collection round across the city catalog.
type Result struct {
	Successful  []string  `json:"successful_cities"`
	Failed      []string  `json:"failed_cities"`
	CollectedAt time.Time `json:"collected_at"`
}

// Service collects one weather row per catalog city. A failed city never
// stops the remaining cities.
type Service struct {
	db     db.Querier
	client *Client
	nowFn  func() time.Time
}

func NewService(database db.Querier, client *Client) *Service {
	return &Service{db: database, client: client, nowFn: time.Now}
}

func (s *Service) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createWeatherTable); err != nil {
		return fmt.Errorf("ensure weather_data: %w", err)
	}
	if _, err := s.db.Exec(ctx, createWeatherIndex); err != nil {
		return fmt.Errorf("ensure weather_data index: %w", err)
	}
	return nil
}

// Collect fetches current weather plus air pollution for every catalog city
// and inserts one row each. The weather reading is required; the pollution
// reading is optional and lands as NULL columns when unavailable.
func (s *Service) Collect(ctx context.Context) (Result, error) {
	if s.client.apiKey == "" {
		return Result{}, errors.New("openweather api key not configured")
	}

	observedAt := s.nowFn().UTC()
	result := Result{Successful: []string{}, Failed: []string{}, CollectedAt: observedAt}

	for _, city := range Cities() {
		obs, err := s.client.Current(ctx, city.Lat, city.Lon)
		if err != nil {
			log.WithField("city", city.Name).WithError(err).Warn("weather fetch failed")
			result.Failed = append(result.Failed, city.Name)
			continue
		}

		var aqi *int
		var pm25 *float64
		if sample, err := s.client.Pollution(ctx, city.Lat, city.Lon); err != nil {
			log.WithField("city", city.Name).WithError(err).Warn("air pollution unavailable")
		} else {
			aqi, pm25 = &sample.AQI, &sample.PM25
		}

		if _, err := s.db.Exec(ctx, insertWeatherRow,
			city.Name, aqi, obs.Temperature, obs.Humidity, pm25, observedAt); err != nil {
			log.WithField("city", city.Name).WithError(err).Warn("weather insert failed")
			result.Failed = append(result.Failed, city.Name)
			continue
		}
		result.Successful = append(result.Successful, city.Name)
	}

	log.WithFields(log.Fields{
		"successful": len(result.Successful),
		"failed":     len(result.Failed),
	}).Info("weather collection finished")
	return result, nil
}
