package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/stitchworks/api/internal/apperr"
	"github.com/stitchworks/api/internal/audit"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/policy"
	"github.com/stitchworks/api/internal/repository"
)

// TaskApplier adapts tasks to the sync capability interface. Status writes
// are routed through the workflow state machine so replicated edits obey
// the same transition rules as direct actions.
type TaskApplier struct {
	tasks    repository.TaskRepository
	workflow *WorkflowService
	log      repository.MutationLogRepository
	audit    audit.Recorder
}

func NewTaskApplier(tasks repository.TaskRepository, workflow *WorkflowService, mutationLog repository.MutationLogRepository, recorder audit.Recorder) *TaskApplier {
	return &TaskApplier{tasks: tasks, workflow: workflow, log: mutationLog, audit: recorder}
}

func (a *TaskApplier) EntityType() string { return "task" }

func (a *TaskApplier) CurrentValue(ctx context.Context, entityID, field string) (interface{}, error) {
	task, err := a.tasks.Get(ctx, entityID)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound(apperr.CodeTaskNotFound, fmt.Sprintf("task %s not found", entityID))
	}
	if err != nil {
		return nil, err
	}
	v, _ := fieldValue(task, field)
	return v, nil
}

func (a *TaskApplier) ApplyField(ctx context.Context, actor policy.Actor, entityID, field string, value interface{}) error {
	task, err := a.tasks.Get(ctx, entityID)
	if err == repository.ErrNotFound {
		return apperr.NotFound(apperr.CodeTaskNotFound, fmt.Sprintf("task %s not found", entityID))
	}
	if err != nil {
		return err
	}

	switch field {
	case "status":
		return a.workflow.TransitionTo(ctx, actor, entityID, model.TaskStatus(asString(value)), task.RejectReason)

	case "assignee_id":
		before := *task
		task.AssigneeID = asString(value)
		return a.save(ctx, actor, &before, task, field, value)

	case "reject_reason":
		before := *task
		task.RejectReason = asString(value)
		return a.save(ctx, actor, &before, task, field, value)

	case "quantity":
		qty, ok := asInt(value)
		if !ok {
			return apperr.Validation(apperr.CodeUnsupportedField, "quantity must be a number", nil)
		}
		before := *task
		task.Quantity = qty
		return a.save(ctx, actor, &before, task, field, value)

	default:
		return apperr.Validation(apperr.CodeUnsupportedField,
			fmt.Sprintf("field %q of a task cannot be written through sync", field),
			map[string]interface{}{"field": field})
	}
}

func (a *TaskApplier) save(ctx context.Context, actor policy.Actor, before, task *model.Task, field string, value interface{}) error {
	task.UpdatedAt = time.Now().UTC()
	if err := a.tasks.Save(ctx, task); err != nil {
		return apperr.Internal(fmt.Sprintf("failed to save task: %v", err))
	}
	a.audit.Record(ctx, audit.Entry{
		Action:     "task.field_set",
		EntityType: "task",
		EntityID:   task.ID,
		Before:     before,
		After:      task,
		ActorID:    actor.ID,
	})
	a.appendLog(ctx, actor.ID, task.ID, model.SyncOpUpdate, field, value)
	return nil
}

// Create makes a task from a sync payload. Order, type and assignee come
// from the client; everything else is server-assigned.
func (a *TaskApplier) Create(ctx context.Context, actor policy.Actor, payload map[string]interface{}) (string, error) {
	orderID := asString(payload["order_id"])
	taskType := asString(payload["type"])
	if orderID == "" || taskType == "" {
		return "", apperr.Validation(apperr.CodeMissingField, "task create requires order_id and type", nil)
	}

	now := time.Now().UTC()
	task := &model.Task{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		Type:       model.TaskType(taskType),
		AssigneeID: asString(payload["assignee_id"]),
		Status:     model.TaskStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if qty, ok := asInt(payload["quantity"]); ok {
		task.Quantity = qty
	}
	if err := a.tasks.Save(ctx, task); err != nil {
		return "", apperr.Internal(fmt.Sprintf("failed to create task: %v", err))
	}
	a.audit.Record(ctx, audit.Entry{
		Action:     "task.created",
		EntityType: "task",
		EntityID:   task.ID,
		After:      task,
		ActorID:    actor.ID,
	})
	a.appendLog(ctx, actor.ID, task.ID, model.SyncOpCreate, "", nil)
	return task.ID, nil
}

// Delete destroys a task. Only an explicit administrative delete is allowed.
func (a *TaskApplier) Delete(ctx context.Context, actor policy.Actor, entityID string) error {
	if err := policy.Evaluate(actor, policy.ActionTaskDelete, policy.Resource{Type: "task", ID: entityID}); err != nil {
		return err
	}
	task, err := a.tasks.Get(ctx, entityID)
	if err == repository.ErrNotFound {
		return apperr.NotFound(apperr.CodeTaskNotFound, fmt.Sprintf("task %s not found", entityID))
	}
	if err != nil {
		return err
	}
	if err := a.tasks.Delete(ctx, task); err != nil {
		return apperr.Internal(fmt.Sprintf("failed to delete task: %v", err))
	}
	a.audit.Record(ctx, audit.Entry{
		Action:     "task.deleted",
		EntityType: "task",
		EntityID:   task.ID,
		Before:     task,
		ActorID:    actor.ID,
	})
	a.appendLog(ctx, actor.ID, task.ID, model.SyncOpDelete, "", nil)
	return nil
}

func (a *TaskApplier) appendLog(ctx context.Context, actorID, entityID string, op model.SyncOperation, field string, value interface{}) {
	entry := &model.MutationLogEntry{
		ID:          uuid.New().String(),
		EntityType:  "task",
		EntityID:    entityID,
		Operation:   op,
		Field:       field,
		Value:       value,
		ActorID:     actorID,
		CommittedAt: time.Now().UTC(),
	}
	_ = a.log.Append(ctx, entry)
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
