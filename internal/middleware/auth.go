package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/auth"
	"github.com/reelforge/api/pkg/response"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	verifier auth.TokenVerifier
}

// NewAuthMiddleware creates auth middleware backed by a verifier chain
// (Zitadel JWKS first, legacy HMAC as fallback)
func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate validates the bearer token from the Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return response.Unauthorized(c, "Missing or malformed authorization header")
		}

		identity, err := m.verifier.Validate(token)
		if errors.Is(err, auth.ErrNotConfigured) {
			return response.Unauthorized(c, "Authentication not configured")
		}
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		setIdentity(c, identity)
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, identity *auth.Identity) {
	c.Locals("userId", identity.UserID)
	c.Locals("email", identity.Email)
	c.Locals("name", identity.Name)
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals("email").(string); ok {
		return email
	}
	return ""
}
