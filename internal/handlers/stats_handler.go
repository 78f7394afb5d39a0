package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pengaduan/backend/internal/middleware"
	"github.com/pengaduan/backend/internal/services"
	"github.com/pengaduan/backend/pkg/utils"
)

type StatsHandler struct {
	statsService services.StatsService
}

func NewStatsHandler(statsService services.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

func (h *StatsHandler) Get(c *fiber.Ctx) error {
	stats, err := h.statsService.GetStats(c.Context(), middleware.CurrentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Statistics retrieved", stats)
}
