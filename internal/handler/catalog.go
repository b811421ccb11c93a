package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reelforge/api/internal/middleware"
	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/pkg/response"
)

// CatalogHandler serves the static data the submission form needs
type CatalogHandler struct {
	videos *service.VideoService
	music  *service.MusicService
}

func NewCatalogHandler(videos *service.VideoService, music *service.MusicService) *CatalogHandler {
	return &CatalogHandler{videos: videos, music: music}
}

// Tiers handles GET /api/tiers
// @Summary      List tiers
// @Description  Static tier table with scene count, durations and credit cost
// @Tags         Catalog
// @Produce      json
// @Success      200 {object} model.TierListResponse
// @Security     BearerAuth
// @Router       /api/tiers [get]
func (h *CatalogHandler) Tiers(c *fiber.Ctx) error {
	return response.OK(c, model.TierListResponse{Tiers: model.Tiers})
}

// Moods handles GET /api/music/moods
// @Summary      List music moods
// @Description  Moods available in the background music library
// @Tags         Catalog
// @Produce      json
// @Success      200 {object} model.MoodListResponse
// @Security     BearerAuth
// @Router       /api/music/moods [get]
func (h *CatalogHandler) Moods(c *fiber.Ctx) error {
	return response.OK(c, model.MoodListResponse{
		Moods:       h.music.Moods(),
		DefaultMood: h.music.DefaultMood(),
	})
}

// Credits handles GET /api/credits
// @Summary      Credit balance
// @Description  The caller's current credit balance
// @Tags         Catalog
// @Produce      json
// @Success      200 {object} model.CreditBalanceResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/credits [get]
func (h *CatalogHandler) Credits(c *fiber.Ctx) error {
	balance, err := h.videos.Balance(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, model.CreditBalanceResponse{Balance: balance})
}
