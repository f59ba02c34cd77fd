package http

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware guards the data endpoints with a shared token. Clients may
// send `Authorization: Bearer <token>` or, for legacy callers, a `token`
// query parameter. An empty configured token disables the check.
func AuthMiddleware(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}

		presented := c.Query("token")
		if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
			presented = strings.TrimPrefix(h, "Bearer ")
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return errUnauthorized(c, "invalid token")
		}
		return c.Next()
	}
}
