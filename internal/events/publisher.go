package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	runChannel   = "warehouse:runs"
	latestRunKey = "warehouse:runs:latest"
)

// Publisher pushes run outcomes to Redis for schedulers and dashboards.
// A nil receiver or client turns every call into a no-op.
type Publisher struct {
	redis *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{redis: client}
}

// PublishRun stores the result under the latest-run key and fans it out on
// the run channel.
func (p *Publisher) PublishRun(ctx context.Context, result any) error {
	if p == nil || p.redis == nil {
		return nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	if err := p.redis.Set(ctx, latestRunKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("store latest run: %w", err)
	}
	if err := p.redis.Publish(ctx, runChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish run: %w", err)
	}
	return nil
}

// LatestRun returns the raw JSON of the most recent run, nil when none has
// been recorded.
func (p *Publisher) LatestRun(ctx context.Context) ([]byte, error) {
	if p == nil || p.redis == nil {
		return nil, nil
	}

	payload, err := p.redis.Get(ctx, latestRunKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest run: %w", err)
	}
	return payload, nil
}
