package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// TokenMiddleware guards trigger routes with a static bearer token. An empty
// configured token disables the check.
func TokenMiddleware(token string) fiber.Handler {
	tokenBytes := []byte(token)
	return func(c *fiber.Ctx) error {
		if len(tokenBytes) == 0 {
			return c.Next()
		}

		presented := bearerFromHeader(c.Get("Authorization"))
		if presented == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		if subtle.ConstantTimeCompare([]byte(presented), tokenBytes) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}
		return c.Next()
	}
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
