package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stitchworks/api/internal/middleware"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/service"
	"github.com/stitchworks/api/pkg/response"
)

type TaskHandler struct {
	service   *service.WorkflowService
	validator *validator.Validate
}

func NewTaskHandler(svc *service.WorkflowService, v *validator.Validate) *TaskHandler {
	return &TaskHandler{
		service:   svc,
		validator: v,
	}
}

// Act handles POST /api/tasks/:taskId/action
func (h *TaskHandler) Act(c *fiber.Ctx) error {
	taskID := c.Params("taskId")
	if taskID == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	var req model.TaskActionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Act(c.Context(), middleware.Actor(c), taskID, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, result)
}

// ListByOrder handles GET /api/orders/:orderId/tasks
func (h *TaskHandler) ListByOrder(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if orderID == "" {
		return response.ValidationError(c, "Order ID is required", nil)
	}

	tasks, err := h.service.ListTasks(c.Context(), orderID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, fiber.Map{"order_id": orderID, "tasks": tasks})
}

// EnterProduction handles POST /api/orders/:orderId/enter-production
func (h *TaskHandler) EnterProduction(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if orderID == "" {
		return response.ValidationError(c, "Order ID is required", nil)
	}

	tasks, err := h.service.EnterProduction(c.Context(), middleware.Actor(c), orderID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, fiber.Map{"order_id": orderID, "tasks": tasks})
}
