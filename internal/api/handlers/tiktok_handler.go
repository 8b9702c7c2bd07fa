package handlers

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/service"
	"github.com/maheshrc27/autoreel/pkg/utils"
)

type TiktokHandler struct {
	tt  service.TiktokService
	cfg config.Config
}

func NewTiktokHandler(tt service.TiktokService, cfg config.Config) *TiktokHandler {
	return &TiktokHandler{
		tt:  tt,
		cfg: cfg,
	}
}

// ConnectAccount sends the user to TikTok's consent screen. The state
// parameter carries a signed token so the callback can recover who
// started the flow without a session.
func (h *TiktokHandler) ConnectAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)

	state, err := utils.GenerateToken(h.cfg.SecretKey, strconv.FormatInt(userID, 10), 15*time.Minute)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to start TikTok authorization",
		})
	}

	return c.Redirect(h.tt.AuthURL(state))
}

func (h *TiktokHandler) CallbackHandler(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	if errCode := c.Query("error"); errCode != "" {
		slog.Info("tiktok authorization denied: " + errCode)
		return c.Redirect(fmt.Sprintf("%s/dashboard/account?connected=0", h.cfg.FrontendURL), fiber.StatusTemporaryRedirect)
	}

	claims, err := utils.ValidateToken(h.cfg.SecretKey, state)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	if err := h.tt.Link(c.Context(), code, userID); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	redirectURL := fmt.Sprintf("%s/dashboard/account?connected=1", h.cfg.FrontendURL)
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

// AccountInfo reports the linked TikTok account without exposing
// token material.
func (h *TiktokHandler) AccountInfo(c *fiber.Ctx) error {
	userID := GetUserID(c)

	credential, err := h.tt.GetCredential(c.Context(), userID)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch TikTok account",
		})
	}
	if credential == nil {
		return c.JSON(fiber.Map{
			"connected": false,
		})
	}

	return c.JSON(fiber.Map{
		"connected":  true,
		"open_id":    credential.OpenID,
		"scope":      credential.Scope,
		"status":     credential.Status,
		"expires_at": credential.ExpiresAt(),
	})
}

func (h *TiktokHandler) DisconnectAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)

	if err := h.tt.Revoke(c.Context(), userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to disconnect TikTok account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// ListVideos proxies TikTok's video list for the linked account.
func (h *TiktokHandler) ListVideos(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var cursor int64
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid cursor",
			})
		}
		cursor = parsed
	}

	maxCount := c.QueryInt("max_count", 20)
	if maxCount < 1 || maxCount > 20 {
		maxCount = 20
	}

	videos, err := h.tt.ListVideos(c.Context(), userID, cursor, maxCount)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch TikTok videos",
		})
	}

	return c.JSON(videos)
}
