package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type CheckHandler struct {
	svc Service
}

func NewCheckHandler(svc Service) *CheckHandler {
	return &CheckHandler{svc: svc}
}

// HandleHealthy probes every dependency; any failing probe degrades the
// overall status but the response still enumerates the healthy ones.
func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	healthy, deps := h.svc.Health(c.Context())
	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	return c.JSON(fiber.Map{
		"status":       status,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"dependencies": deps,
	})
}
