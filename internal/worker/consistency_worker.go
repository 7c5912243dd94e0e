package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/stitchworks/api/internal/audit"
	"github.com/stitchworks/api/internal/service"
)

// ConsistencyWorker recomputes an order's status projection from task state
// and reports drift. It never repairs: the projection is the canonical
// write-time value, drift is a bug signal for operators.
type ConsistencyWorker struct {
	workflow *service.WorkflowService
	audit    audit.Recorder
}

func NewConsistencyWorker(workflow *service.WorkflowService, recorder audit.Recorder) *ConsistencyWorker {
	return &ConsistencyWorker{workflow: workflow, audit: recorder}
}

// ProcessTask handles one projection check.
func (w *ConsistencyWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.ProjectionCheckPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	stored, derived, err := w.workflow.RecomputeOrderStatus(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("projection check for order %s: %w", payload.OrderID, err)
	}

	if stored == derived {
		log.Printf("Projection check OK for order %s (%s)", payload.OrderID, stored)
		return nil
	}

	log.Printf("Projection DRIFT for order %s: stored=%s derived=%s", payload.OrderID, stored, derived)
	w.audit.Record(ctx, audit.Entry{
		Action:     "order.projection_drift",
		EntityType: "order",
		EntityID:   payload.OrderID,
		Before:     map[string]interface{}{"stored": stored},
		After:      map[string]interface{}{"derived": derived},
		ActorID:    "system",
	})
	return nil
}
