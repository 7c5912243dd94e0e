package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stitchworks/api/internal/middleware"
	"github.com/stitchworks/api/internal/service"
	"github.com/stitchworks/api/pkg/response"
)

type AdminHandler struct {
	consistency *service.ConsistencyService
}

func NewAdminHandler(consistency *service.ConsistencyService) *AdminHandler {
	return &AdminHandler{consistency: consistency}
}

// EnqueueConsistencyCheck handles POST /api/admin/consistency-check/:orderId.
// The check runs in the background worker; this only queues it.
func (h *AdminHandler) EnqueueConsistencyCheck(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if orderID == "" {
		return response.ValidationError(c, "Order ID is required", nil)
	}

	if err := h.consistency.EnqueueCheck(c.Context(), middleware.Actor(c), orderID); err != nil {
		return response.FromError(c, err)
	}
	return response.Accepted(c, fiber.Map{"order_id": orderID, "status": "queued"})
}
