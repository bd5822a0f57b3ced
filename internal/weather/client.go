package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultBaseURL is the OpenWeather current-conditions API root.
const DefaultBaseURL = "http://api.openweathermap.org/data/2.5"

// City is one entry of the fixed Swiss collection catalog.
type City struct {
	Name string
	Lat  float64
	Lon  float64
}

// Cities returns the catalog in collection order.
func Cities() []City {
	return []City{
		{Name: "Zurich", Lat: 47.3769, Lon: 8.5417},
		{Name: "Lucerne", Lat: 47.0502, Lon: 8.3093},
		{Name: "Geneva", Lat: 46.2044, Lon: 6.1432},
		{Name: "Basel", Lat: 47.5596, Lon: 7.5886},
		{Name: "Bern", Lat: 46.9480, Lon: 7.4474},
		{Name: "Lausanne", Lat: 46.5197, Lon: 6.6323},
	}
}

// Observation is the current-weather reading kept by the collector.
type Observation struct {
	Temperature float64
	Humidity    int
}

// PollutionSample is the air-pollution reading kept by the collector.
type PollutionSample struct {
	AQI  int
	PM25 float64
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, http: &http.Client{Timeout: timeout}}
}

// Current fetches the metric-unit weather reading for one coordinate.
func (c *Client) Current(ctx context.Context, lat, lon float64) (Observation, error) {
	var payload struct {
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
	}
	url := fmt.Sprintf("%s/weather?lat=%.4f&lon=%.4f&units=metric&appid=%s", c.baseURL, lat, lon, c.apiKey)
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return Observation{}, fmt.Errorf("current weather: %w", err)
	}
	return Observation{Temperature: payload.Main.Temp, Humidity: payload.Main.Humidity}, nil
}

// Pollution fetches the air-pollution reading for one coordinate.
func (c *Client) Pollution(ctx context.Context, lat, lon float64) (PollutionSample, error) {
	var payload struct {
		List []struct {
			Main struct {
				AQI int `json:"aqi"`
			} `json:"main"`
			Components struct {
				PM25 float64 `json:"pm2_5"`
			} `json:"components"`
		} `json:"list"`
	}
	url := fmt.Sprintf("%s/air_pollution?lat=%.4f&lon=%.4f&appid=%s", c.baseURL, lat, lon, c.apiKey)
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return PollutionSample{}, fmt.Errorf("air pollution: %w", err)
	}
	if len(payload.List) == 0 {
		return PollutionSample{}, fmt.Errorf("air pollution: empty response")
	}
	return PollutionSample{AQI: payload.List[0].Main.AQI, PM25: payload.List[0].Components.PM25}, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
