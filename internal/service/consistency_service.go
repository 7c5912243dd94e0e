package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stitchworks/api/internal/apperr"
	"github.com/stitchworks/api/internal/policy"
)

const TaskTypeProjectionCheck = "projection:check"

// ProjectionCheckPayload identifies the order whose status projection a
// worker should recompute and compare.
type ProjectionCheckPayload struct {
	OrderID string `json:"order_id"`
}

// ConsistencyService enqueues projection drift checks. The request path
// stays synchronous; the recompute-and-compare runs on the worker.
type ConsistencyService struct {
	asynqClient *asynq.Client
}

func NewConsistencyService(asynqClient *asynq.Client) *ConsistencyService {
	return &ConsistencyService{asynqClient: asynqClient}
}

// EnqueueCheck schedules a drift check for one order. Admin only.
func (s *ConsistencyService) EnqueueCheck(_ context.Context, actor policy.Actor, orderID string) error {
	if err := policy.Evaluate(actor, policy.ActionAdmin, policy.Resource{Type: "order", ID: orderID}); err != nil {
		return err
	}
	if s.asynqClient == nil {
		return apperr.Internal("background queue is not configured")
	}

	payload, err := json.Marshal(ProjectionCheckPayload{OrderID: orderID})
	if err != nil {
		return apperr.Internal(fmt.Sprintf("failed to marshal payload: %v", err))
	}

	task := asynq.NewTask(TaskTypeProjectionCheck, payload)
	if _, err := s.asynqClient.Enqueue(task,
		asynq.Queue("consistency"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	); err != nil {
		return apperr.Internal(fmt.Sprintf("failed to enqueue check: %v", err))
	}
	return nil
}
