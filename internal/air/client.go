package air

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultBaseURL is the WAQI feed API root.
const DefaultBaseURL = "https://api.waqi.info"

// Reading is one station's decoded feed. The iaqi sub-readings are optional
// in the upstream document and stay nil when absent.
type Reading struct {
	AQI         float64
	Temperature *float64
	Humidity    *float64
	PM25        *float64
}

type iaqiValue struct {
	V float64 `json:"v"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, token: token, http: &http.Client{Timeout: timeout}}
}

// Feed fetches one station feed. The station is the capitalized feed name,
// not the stored city key.
func (c *Client) Feed(ctx context.Context, station string) (Reading, error) {
	var reading Reading
	url := fmt.Sprintf("%s/feed/%s/?token=%s", c.baseURL, station, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return reading, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return reading, fmt.Errorf("fetch air feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return reading, fmt.Errorf("air feed: unexpected status %d", resp.StatusCode)
	}

	// The data field is a string on error responses, so the envelope is
	// decoded before the payload.
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return reading, fmt.Errorf("decode air feed: %w", err)
	}
	if envelope.Status != "ok" {
		return reading, fmt.Errorf("air feed status %q", envelope.Status)
	}

	var payload struct {
		AQI  float64 `json:"aqi"`
		IAQI struct {
			T    *iaqiValue `json:"t"`
			H    *iaqiValue `json:"h"`
			PM25 *iaqiValue `json:"pm25"`
		} `json:"iaqi"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return reading, fmt.Errorf("decode air feed data: %w", err)
	}

	reading.AQI = payload.AQI
	if payload.IAQI.T != nil {
		reading.Temperature = &payload.IAQI.T.V
	}
	if payload.IAQI.H != nil {
		reading.Humidity = &payload.IAQI.H.V
	}
	if payload.IAQI.PM25 != nil {
		reading.PM25 = &payload.IAQI.PM25.V
	}
	return reading, nil
}
