package db

import (
	"context"
	"time"

	"github.com/jahua/data-warehouse/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

var newPoolFn = pgxpool.New
var pingPoolFn = func(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}

// ConnectSource opens the ping store pool, the read side of a warehouse run.
func ConnectSource(cfg config.Config) (*pgxpool.Pool, error) {
	return connect(cfg.SourceDatabaseURL)
}

// ConnectWarehouse opens the analytical store pool, the write side.
func ConnectWarehouse(cfg config.Config) (*pgxpool.Pool, error) {
	return connect(cfg.WarehouseDatabaseURL)
}

func connect(url string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := newPoolFn(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pingPoolFn(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
