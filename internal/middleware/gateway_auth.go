package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/auth"
	"github.com/reelforge/api/pkg/response"
)

// GatewayAuthMiddleware trusts the X-User-* headers set by Traefik ForwardAuth
// after /auth/verify accepted the request
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		setIdentity(c, &auth.Identity{
			UserID: userID,
			Email:  c.Get("X-User-Email"),
			Name:   c.Get("X-User-Name"),
		})
		return c.Next()
	}
}
