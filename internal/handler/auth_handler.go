package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/auth"
)

// AuthHandler handles ForwardAuth verification for the API gateway
type AuthHandler struct {
	verifier auth.TokenVerifier
}

// NewAuthHandler creates a new auth handler for ForwardAuth verification
func NewAuthHandler(verifier auth.TokenVerifier) *AuthHandler {
	return &AuthHandler{verifier: verifier}
}

// Verify handles GET /auth/verify, called by Traefik ForwardAuth.
// Returns 200 with X-User-* headers on success, 401 on failure.
// @Summary      ForwardAuth verification
// @Tags         Auth
// @Success      200
// @Failure      401
// @Router       /auth/verify [get]
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	identity, err := h.verifier.Validate(token)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Set("X-User-Id", identity.UserID)
	c.Set("X-User-Email", identity.Email)
	c.Set("X-User-Name", identity.Name)
	return c.SendStatus(fiber.StatusOK)
}
