package trip

import (
	"github.com/jahua/data-warehouse/internal/events"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, runner *Runner, publisher *events.Publisher, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		result := runner.Run(c.Context())
		status := fiber.StatusOK
		if result.Status == StatusError {
			status = fiber.StatusInternalServerError
		}
		return c.Status(status).JSON(result)
	})

	r.Get("/latest", func(c *fiber.Ctx) error {
		payload, err := publisher.LatestRun(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if payload == nil {
			return fiber.NewError(fiber.StatusNotFound, "no runs recorded")
		}
		return c.Type("json").Send(payload)
	})
}
