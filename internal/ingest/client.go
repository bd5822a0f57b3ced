package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// StatusFeed mirrors the GBFS free_bike_status document, reduced to the
// fields the ingest path stores.
type StatusFeed struct {
	LastUpdated int64 `json:"last_updated"`
	Data        struct {
		Bikes []Bike `json:"bikes"`
	} `json:"data"`
}

type Bike struct {
	BikeID     string  `json:"bike_id"`
	ProviderID string  `json:"provider_id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	IsReserved bool    `json:"is_reserved"`
	IsDisabled bool    `json:"is_disabled"`
}

// Client fetches the aggregated shared-mobility GBFS feed.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *Client) FreeBikeStatus(ctx context.Context) (StatusFeed, error) {
	var feed StatusFeed
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/free_bike_status.json", nil)
	if err != nil {
		return feed, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return feed, fmt.Errorf("fetch free bike status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return feed, fmt.Errorf("free bike status: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return feed, fmt.Errorf("decode free bike status: %w", err)
	}
	return feed, nil
}
