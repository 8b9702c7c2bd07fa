package handlers

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autoreel/internal/models"
	"github.com/maheshrc27/autoreel/internal/repository"
)

type ReelHandler struct {
	rr repository.ReelRepository
	pr repository.ProfileRepository
}

func NewReelHandler(rr repository.ReelRepository, pr repository.ProfileRepository) *ReelHandler {
	return &ReelHandler{rr: rr, pr: pr}
}

// ListReels returns the caller's reels, optionally filtered by status
// and/or profile.
func (h *ReelHandler) ListReels(c *fiber.Ctx) error {
	userID := GetUserID(c)

	status := c.Query("status")
	switch status {
	case "", models.ReelStatusPending, models.ReelStatusPosted, models.ReelStatusFailed:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown status filter",
		})
	}

	var profileID int64
	if raw := c.Query("profile_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid profile id",
			})
		}
		profileID = parsed
	}

	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	reels, err := h.rr.List(c.Context(), userID, status, profileID, limit)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch reels",
		})
	}

	return c.JSON(fiber.Map{
		"reels": reels,
	})
}

func (h *ReelHandler) GetReel(c *fiber.Ctx) error {
	reel := h.getOwnedReel(c)
	if reel == nil {
		return nil
	}
	return c.JSON(reel)
}

// RetryReel puts a failed reel back into the pending queue so the next
// relay sweep picks it up again.
func (h *ReelHandler) RetryReel(c *fiber.Ctx) error {
	reel := h.getOwnedReel(c)
	if reel == nil {
		return nil
	}

	reset, err := h.rr.ResetToPending(c.Context(), reel.ID)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retry reel",
		})
	}
	if !reset {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Only failed reels can be retried",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Reel queued for retry",
	})
}

// getOwnedReel resolves the :id param and checks that the reel's
// profile belongs to the caller. Writes the error response itself and
// returns nil when the caller should stop.
func (h *ReelHandler) getOwnedReel(c *fiber.Ctx) *models.Reel {
	userID := GetUserID(c)

	reelID, err := c.ParamsInt("id")
	if err != nil {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid reel id",
		})
		return nil
	}

	reel, err := h.rr.GetByID(c.Context(), int64(reelID))
	if err != nil {
		c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch reel",
		})
		return nil
	}
	if reel == nil {
		c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Reel not found",
		})
		return nil
	}

	profile, err := h.pr.GetByID(c.Context(), reel.ProfileID)
	if err != nil {
		c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch reel",
		})
		return nil
	}
	if profile == nil || profile.UserID != userID {
		c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Reel not found",
		})
		return nil
	}

	return reel
}
