package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stitchworks/api/internal/middleware"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/service"
	"github.com/stitchworks/api/pkg/response"
)

type ConflictHandler struct {
	service   *service.ConflictService
	validator *validator.Validate
}

func NewConflictHandler(svc *service.ConflictService, v *validator.Validate) *ConflictHandler {
	return &ConflictHandler{
		service:   svc,
		validator: v,
	}
}

// List handles GET /api/conflicts. By default only unresolved conflicts are
// returned; pass all=true to include resolved ones.
func (h *ConflictHandler) List(c *fiber.Ctx) error {
	unresolvedOnly := c.Query("all") != "true"

	conflicts, err := h.service.List(c.Context(), unresolvedOnly)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, fiber.Map{"conflicts": conflicts})
}

// Resolve handles POST /api/conflicts/:conflictId/resolve
func (h *ConflictHandler) Resolve(c *fiber.Ctx) error {
	conflictID := c.Params("conflictId")
	if conflictID == "" {
		return response.ValidationError(c, "Conflict ID is required", nil)
	}

	var req model.ResolveConflictRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	if req.Method == model.ResolutionManual && req.Value == nil {
		return response.ValidationError(c, "MANUAL resolution requires a value", nil)
	}

	conflict, err := h.service.Resolve(c.Context(), middleware.Actor(c), conflictID, req.Method, req.Value, req.Reason)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, conflict)
}

// ResolveBulk handles POST /api/conflicts/resolve-bulk
func (h *ConflictHandler) ResolveBulk(c *fiber.Ctx) error {
	var req model.BulkResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.ResolveBulk(c.Context(), middleware.Actor(c), req.Items)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.MultiStatus(c, result)
}
