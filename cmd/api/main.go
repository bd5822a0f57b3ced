package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jahua/data-warehouse/internal/config"
	"github.com/jahua/data-warehouse/internal/db"
	"github.com/jahua/data-warehouse/internal/logging"
	"github.com/jahua/data-warehouse/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig       func() config.Config
	setupLogging     func(config.Config)
	connectSource    func(config.Config) (*pgxpool.Pool, error)
	connectWarehouse func(config.Config) (*pgxpool.Pool, error)
	connectRedis     func(config.Config) *redis.Client
	notify           func(chan<- os.Signal, ...os.Signal)
	run              func(context.Context, config.Config, *pgxpool.Pool, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:       config.Load,
		setupLogging:     logging.Setup,
		connectSource:    db.ConnectSource,
		connectWarehouse: db.ConnectWarehouse,
		connectRedis:     db.ConnectRedis,
		notify:           signal.Notify,
		run:              Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	deps.setupLogging(cfg)

	source, err := deps.connectSource(cfg)
	if err != nil {
		log.WithError(err).Warn("source store connection failed")
	}
	warehouse, err := deps.connectWarehouse(cfg)
	if err != nil {
		log.WithError(err).Warn("warehouse connection failed")
	}
	rdb := deps.connectRedis(cfg)

	if cfg.APIToken == "" {
		log.Warn("API_TOKEN empty, trigger routes are unauthenticated")
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, source, warehouse, rdb, signals, nil); err != nil {
		log.WithError(err).Error("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, source, warehouse *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, source, warehouse, rdb)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	if source != nil {
		source.Close()
	}
	if warehouse != nil {
		warehouse.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
