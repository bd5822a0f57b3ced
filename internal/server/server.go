package server

import (
	"time"

	"github.com/jahua/data-warehouse/internal/air"
	"github.com/jahua/data-warehouse/internal/auth"
	"github.com/jahua/data-warehouse/internal/config"
	"github.com/jahua/data-warehouse/internal/events"
	"github.com/jahua/data-warehouse/internal/ingest"
	"github.com/jahua/data-warehouse/internal/trip"
	"github.com/jahua/data-warehouse/internal/weather"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App       *fiber.App
	Cfg       config.Config
	Source    *pgxpool.Pool
	Warehouse *pgxpool.Pool
	Redis     *redis.Client
	Events    *events.Publisher
}

func NewServer(cfg config.Config, source, warehouse *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:       app,
		Cfg:       cfg,
		Source:    source,
		Warehouse: warehouse,
		Redis:     redisClient,
		Events:    events.NewPublisher(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	tokenMiddleware := auth.TokenMiddleware(s.Cfg.APIToken)
	collectorTimeout := time.Duration(s.Cfg.CollectorTimeoutSeconds) * time.Second

	runner := trip.NewRunner(s.Source, s.Warehouse, s.Events, trip.RunnerOptions{
		WindowLength:   time.Duration(s.Cfg.WindowHours) * time.Hour,
		Timezone:       s.Cfg.AnchorTimezone,
		QueryTimeout:   time.Duration(s.Cfg.QueryTimeoutSeconds) * time.Second,
		MergeBatchSize: s.Cfg.MergeBatchSize,
	})
	trip.RegisterRoutes(s.App.Group("/runs"), runner, s.Events, tokenMiddleware)

	collect := s.App.Group("/collect")
	ingest.RegisterRoutes(collect,
		ingest.NewService(s.Source, ingest.NewClient(s.Cfg.GBFSURL, collectorTimeout)), tokenMiddleware)
	weather.RegisterRoutes(collect,
		weather.NewService(s.Source, weather.NewClient(weather.DefaultBaseURL, s.Cfg.OpenWeatherAPIKey, collectorTimeout)), tokenMiddleware)
	air.RegisterRoutes(collect,
		air.NewService(s.Source, air.NewClient(air.DefaultBaseURL, s.Cfg.WAQIAPIToken, collectorTimeout)), tokenMiddleware)
}
