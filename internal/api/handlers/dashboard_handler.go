package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autoreel/internal/models"
	"github.com/maheshrc27/autoreel/internal/repository"
	"github.com/maheshrc27/autoreel/internal/service"
)

type DashboardHandler struct {
	pr repository.ProfileRepository
	rr repository.ReelRepository
	px repository.ProxyRepository
	tt service.TiktokService
}

func NewDashboardHandler(pr repository.ProfileRepository, rr repository.ReelRepository, px repository.ProxyRepository, tt service.TiktokService) *DashboardHandler {
	return &DashboardHandler{
		pr: pr,
		rr: rr,
		px: px,
		tt: tt,
	}
}

// Overview aggregates pipeline counters for the dashboard landing page.
func (h *DashboardHandler) Overview(c *fiber.Ctx) error {
	userID := GetUserID(c)
	ctx := c.Context()

	totalProfiles, err := h.pr.CountAll(ctx)
	if err != nil {
		return h.overviewError(c, err)
	}
	activeProfiles, err := h.pr.CountActive(ctx)
	if err != nil {
		return h.overviewError(c, err)
	}
	reelCounts, err := h.rr.CountByStatus(ctx)
	if err != nil {
		return h.overviewError(c, err)
	}
	activeProxies, err := h.px.CountActive(ctx)
	if err != nil {
		return h.overviewError(c, err)
	}

	tiktokStatus := "disconnected"
	credential, err := h.tt.GetCredential(ctx, userID)
	if err != nil {
		return h.overviewError(c, err)
	}
	if credential != nil {
		tiktokStatus = credential.Status
	}

	return c.JSON(fiber.Map{
		"profiles": fiber.Map{
			"total":  totalProfiles,
			"active": activeProfiles,
		},
		"reels": fiber.Map{
			"pending": reelCounts[models.ReelStatusPending],
			"posted":  reelCounts[models.ReelStatusPosted],
			"failed":  reelCounts[models.ReelStatusFailed],
		},
		"proxies": fiber.Map{
			"active": activeProxies,
		},
		"tiktok": fiber.Map{
			"status": tiktokStatus,
		},
	})
}

func (h *DashboardHandler) overviewError(c *fiber.Ctx, err error) error {
	slog.Info(err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to build dashboard overview",
	})
}
