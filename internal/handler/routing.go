package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stitchworks/api/internal/middleware"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/service"
	"github.com/stitchworks/api/pkg/response"
)

type RoutingHandler struct {
	service   *service.RoutingService
	validator *validator.Validate
}

func NewRoutingHandler(svc *service.RoutingService, v *validator.Validate) *RoutingHandler {
	return &RoutingHandler{
		service:   svc,
		validator: v,
	}
}

// GetOrder handles GET /api/orders/:orderId
func (h *RoutingHandler) GetOrder(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if orderID == "" {
		return response.ValidationError(c, "Order ID is required", nil)
	}

	order, err := h.service.GetOrder(c.Context(), orderID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, order)
}

// ListSteps handles GET /api/orders/:orderId/routing
func (h *RoutingHandler) ListSteps(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if orderID == "" {
		return response.ValidationError(c, "Order ID is required", nil)
	}

	steps, err := h.service.ListSteps(c.Context(), orderID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, fiber.Map{"order_id": orderID, "steps": steps})
}

// Customize handles POST /api/orders/:orderId/routing/customize
func (h *RoutingHandler) Customize(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if orderID == "" {
		return response.ValidationError(c, "Order ID is required", nil)
	}

	var req model.CustomizeRoutingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Customize(c.Context(), middleware.Actor(c), orderID, req.Steps)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, result)
}

// ApplyTemplate handles POST /api/orders/:orderId/routing/template
func (h *RoutingHandler) ApplyTemplate(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if orderID == "" {
		return response.ValidationError(c, "Order ID is required", nil)
	}

	var req model.ApplyTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.ApplyTemplate(c.Context(), middleware.Actor(c), orderID, req.TemplateKey)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, result)
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
