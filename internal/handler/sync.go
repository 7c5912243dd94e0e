package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stitchworks/api/internal/middleware"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/service"
	"github.com/stitchworks/api/pkg/response"
)

type SyncHandler struct {
	service   *service.SyncService
	validator *validator.Validate
}

func NewSyncHandler(svc *service.SyncService, v *validator.Validate) *SyncHandler {
	return &SyncHandler{
		service:   svc,
		validator: v,
	}
}

// Upload handles POST /api/sync/upload
func (h *SyncHandler) Upload(c *fiber.Ctx) error {
	var req model.SyncUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Upload(c.Context(), middleware.Actor(c), req.Mutations)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.MultiStatus(c, result)
}

// Download handles GET /api/sync/download?since=<RFC3339>
func (h *SyncHandler) Download(c *fiber.Ctx) error {
	sinceParam := c.Query("since")

	var since time.Time
	if sinceParam != "" {
		parsed, err := time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			return response.ValidationError(c, "since must be an RFC3339 timestamp", nil)
		}
		since = parsed
	}

	result, err := h.service.Download(c.Context(), since)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, result)
}
