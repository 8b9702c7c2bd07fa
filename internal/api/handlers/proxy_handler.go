package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/autoreel/internal/service"
)

type ProxyHandler struct {
	ps service.ProxyService
}

func NewProxyHandler(ps service.ProxyService) *ProxyHandler {
	return &ProxyHandler{ps: ps}
}

func (h *ProxyHandler) ListProxies(c *fiber.Ctx) error {
	proxies, err := h.ps.List(c.Context())
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch proxies",
		})
	}

	return c.JSON(fiber.Map{
		"proxies": proxies,
	})
}

// ReactivateProxy clears a deactivated endpoint back into rotation,
// typically after the operator has fixed or replaced it upstream.
func (h *ProxyHandler) ReactivateProxy(c *fiber.Ctx) error {
	proxyID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid proxy id",
		})
	}

	if err := h.ps.Reactivate(c.Context(), int64(proxyID)); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to reactivate proxy",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// RefreshProxies re-imports the configured proxy list on demand instead
// of waiting for the next scheduled stats sweep.
func (h *ProxyHandler) RefreshProxies(c *fiber.Ctx) error {
	imported, err := h.ps.RefreshPool(c.Context())
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to refresh proxy pool",
		})
	}

	return c.JSON(fiber.Map{
		"imported": imported,
	})
}
