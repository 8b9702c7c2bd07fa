package handlers

import (
	"log"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autoreel/internal/models"
	"github.com/maheshrc27/autoreel/internal/repository"
	"github.com/maheshrc27/autoreel/internal/service"
)

type ProfileHandler struct {
	pr repository.ProfileRepository
	rr repository.ReelRepository
	ig service.InstagramService
}

func NewProfileHandler(pr repository.ProfileRepository, rr repository.ReelRepository, ig service.InstagramService) *ProfileHandler {
	return &ProfileHandler{pr: pr, rr: rr, ig: ig}
}

type createProfileRequest struct {
	Username             string `json:"username"`
	CheckIntervalMinutes int    `json:"check_interval_minutes"`
}

func (h *ProfileHandler) CreateProfile(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req createProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username is required",
		})
	}
	if req.CheckIntervalMinutes <= 0 {
		req.CheckIntervalMinutes = 60
	}

	profile := &models.MonitoredProfile{
		UserID:               userID,
		Username:             req.Username,
		IsActive:             true,
		CheckIntervalMinutes: req.CheckIntervalMinutes,
	}

	// Best effort; the profile is still monitorable without metadata.
	if info, err := h.ig.GetProfileInfo(c.Context(), req.Username); err == nil {
		profile.DisplayName = info.DisplayName
		profile.ProfilePictureURL = info.ProfilePictureURL
	} else {
		log.Printf("Could not fetch profile info for %s: %v", req.Username, err)
	}

	id, err := h.pr.Create(c.Context(), profile)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to create profile",
		})
	}

	profile.ID = id
	return c.Status(fiber.StatusCreated).JSON(profile)
}

func (h *ProfileHandler) ListProfiles(c *fiber.Ctx) error {
	userID := GetUserID(c)

	profiles, err := h.pr.ListByUserID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch profiles",
		})
	}

	type profileWithCount struct {
		*models.MonitoredProfile
		PostsCount int64 `json:"posts_count"`
	}

	result := make([]profileWithCount, 0, len(profiles))
	for _, p := range profiles {
		count, err := h.rr.CountByProfile(c.Context(), p.ID)
		if err != nil {
			count = 0
		}
		result = append(result, profileWithCount{MonitoredProfile: p, PostsCount: count})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"profiles": result})
}

type updateProfileRequest struct {
	IsActive             *bool `json:"is_active"`
	CheckIntervalMinutes *int  `json:"check_interval_minutes"`
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	profileID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid profile id",
		})
	}

	profile := h.getOwnedProfile(c, int64(profileID))
	if profile == nil {
		return nil
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.IsActive != nil {
		if err := h.pr.SetActive(c.Context(), profile.ID, *req.IsActive); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unable to update profile",
			})
		}
	}
	if req.CheckIntervalMinutes != nil && *req.CheckIntervalMinutes > 0 {
		if err := h.pr.SetCheckInterval(c.Context(), profile.ID, *req.CheckIntervalMinutes); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unable to update profile",
			})
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ProfileHandler) DeleteProfile(c *fiber.Ctx) error {
	profileID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid profile id",
		})
	}

	profile := h.getOwnedProfile(c, int64(profileID))
	if profile == nil {
		return nil
	}

	if err := h.pr.Remove(c.Context(), profile.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to delete profile",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ProfileHandler) ProfileStats(c *fiber.Ctx) error {
	profileID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid profile id",
		})
	}

	profile := h.getOwnedProfile(c, int64(profileID))
	if profile == nil {
		return nil
	}

	reelCount, err := h.rr.CountByProfile(c.Context(), profile.ID)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute stats",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"profile":    profile,
		"reel_count": reelCount,
	})
}

// getOwnedProfile loads the profile and rejects access when it belongs
// to a different user. Writes the error response itself and returns
// nil when the caller should stop.
func (h *ProfileHandler) getOwnedProfile(c *fiber.Ctx, profileID int64) *models.MonitoredProfile {
	userID := GetUserID(c)

	profile, err := h.pr.GetByID(c.Context(), profileID)
	if err != nil {
		c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch profile",
		})
		return nil
	}
	if profile == nil || profile.UserID != userID {
		c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
		return nil
	}
	return profile
}
