package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stitchworks/api/internal/apperr"
	"github.com/stitchworks/api/internal/audit"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/policy"
	"github.com/stitchworks/api/internal/repository"
)

// WorkflowService is the state machine for task and order status. Statuses
// only move through named actions; the order status is a projection written
// alongside the task update, never set directly.
type WorkflowService struct {
	orders   repository.OrderRepository
	tasks    repository.TaskRepository
	pipeline policy.PipelinePolicy
	log      repository.MutationLogRepository
	audit    audit.Recorder
}

func NewWorkflowService(
	orders repository.OrderRepository,
	tasks repository.TaskRepository,
	pipeline policy.PipelinePolicy,
	mutationLog repository.MutationLogRepository,
	recorder audit.Recorder,
) *WorkflowService {
	return &WorkflowService{
		orders:   orders,
		tasks:    tasks,
		pipeline: pipeline,
		log:      mutationLog,
		audit:    recorder,
	}
}

func (s *WorkflowService) getTask(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound(apperr.CodeTaskNotFound, fmt.Sprintf("task %s not found", taskID))
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns the order's tasks.
func (s *WorkflowService) ListTasks(ctx context.Context, orderID string) ([]*model.Task, error) {
	if _, err := s.orders.Get(ctx, orderID); err == repository.ErrNotFound {
		return nil, apperr.NotFound(apperr.CodeOrderNotFound, fmt.Sprintf("order %s not found", orderID))
	} else if err != nil {
		return nil, err
	}
	return s.tasks.ListByOrder(ctx, orderID)
}

// Act performs a named task action and returns the updated task, the
// (possibly re-projected) order status and any pipeline-activated task ids.
func (s *WorkflowService) Act(ctx context.Context, actor policy.Actor, taskID string, req *model.TaskActionRequest) (*model.TaskActionResponse, error) {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := policy.Evaluate(actor, policy.TaskActionName(req.Action), policy.Resource{
		Type:    "task",
		ID:      task.ID,
		OwnerID: task.AssigneeID,
	}); err != nil {
		return nil, err
	}

	before := *task
	now := time.Now().UTC()

	switch req.Action {
	case model.TaskActionStart:
		if task.Status != model.TaskStatusPending {
			return nil, invalidTransition(req.Action, task.Status)
		}
		task.Status = model.TaskStatusInProgress
		task.StartedAt = &now

	case model.TaskActionComplete:
		if task.Status != model.TaskStatusInProgress {
			return nil, invalidTransition(req.Action, task.Status)
		}
		task.Status = model.TaskStatusCompleted
		task.CompletedAt = &now

	case model.TaskActionReject:
		if task.Status != model.TaskStatusInProgress {
			return nil, invalidTransition(req.Action, task.Status)
		}
		if strings.TrimSpace(req.Reason) == "" {
			return nil, apperr.Validation(apperr.CodeMissingReason, "reject requires a non-empty reason", nil)
		}
		task.Status = model.TaskStatusRejected
		task.RejectedAt = &now
		task.RejectReason = req.Reason

	case model.TaskActionHold:
		task.Status = model.TaskStatusOnHold

	case model.TaskActionReassign:
		if strings.TrimSpace(req.AssigneeID) == "" {
			return nil, apperr.Validation(apperr.CodeMissingAssignee, "reassign requires an assignee", nil)
		}
		task.Status = model.TaskStatusPending
		task.AssigneeID = req.AssigneeID
		task.StartedAt = nil
		task.CompletedAt = nil
		task.RejectedAt = nil
		task.ActivatedAt = nil
		task.RejectReason = ""

	default:
		return nil, apperr.Validation(apperr.CodeInvalidAction, fmt.Sprintf("unknown task action %q", req.Action), nil)
	}

	task.UpdatedAt = now
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("failed to save task: %v", err))
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     "task." + string(req.Action),
		EntityType: "task",
		EntityID:   task.ID,
		Before:     &before,
		After:      task,
		ActorID:    actor.ID,
		Reason:     req.Reason,
	})
	s.appendLog(ctx, actor.ID, "task", task.ID, "status", string(task.Status))
	if req.Action == model.TaskActionReassign {
		s.appendLog(ctx, actor.ID, "task", task.ID, "assignee_id", task.AssigneeID)
	}

	resp := &model.TaskActionResponse{Task: task}

	order, err := s.orders.Get(ctx, task.OrderID)
	if err != nil && err != repository.ErrNotFound {
		return nil, err
	}
	if order != nil {
		switch req.Action {
		case model.TaskActionComplete:
			activated, err := s.activatePipeline(ctx, actor, order, task)
			if err != nil {
				return nil, err
			}
			resp.ActivatedTasks = activated
			if err := s.projectOrderStatus(ctx, actor, order, task, false); err != nil {
				return nil, err
			}
		case model.TaskActionReject:
			if err := s.projectOrderStatus(ctx, actor, order, task, true); err != nil {
				return nil, err
			}
		}
		resp.OrderStatus = order.Status
	}

	return resp, nil
}

func invalidTransition(action model.TaskAction, status model.TaskStatus) error {
	return apperr.StateConflict(apperr.CodeInvalidTransition,
		fmt.Sprintf("cannot %s a task in status %s", action, status),
		map[string]interface{}{"action": action, "status": status})
}

// activatePipeline recomputes the completed-type set and stamps eligible
// PENDING tasks whose prerequisites the pipeline policy confirms satisfied.
// Tasks already past PENDING are never touched.
func (s *WorkflowService) activatePipeline(ctx context.Context, actor policy.Actor, order *model.Order, completed *model.Task) ([]string, error) {
	tasks, err := s.tasks.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	completedTypes := make(map[model.TaskType]bool)
	for _, t := range tasks {
		if t.Status == model.TaskStatusCompleted {
			completedTypes[t.Type] = true
		}
	}

	now := time.Now().UTC()
	var activated []string
	for _, next := range s.pipeline.NextEligibleTaskTypes(completed.Type, order.Method) {
		if !s.pipeline.IsStartable(next, completedTypes, order.Method) {
			continue
		}
		for _, t := range tasks {
			if t.Type != next || t.Status != model.TaskStatusPending || t.ActivatedAt != nil {
				continue
			}
			before := *t
			t.ActivatedAt = &now
			t.UpdatedAt = now
			if err := s.tasks.Save(ctx, t); err != nil {
				return nil, apperr.Internal(fmt.Sprintf("failed to activate task: %v", err))
			}
			s.audit.Record(ctx, audit.Entry{
				Action:     "task.activated",
				EntityType: "task",
				EntityID:   t.ID,
				Before:     &before,
				After:      t,
				ActorID:    actor.ID,
			})
			activated = append(activated, t.ID)
		}
	}
	return activated, nil
}

// projectOrderStatus derives the order status from the designated QC and
// terminal task types. Any other completion leaves the status unchanged.
func (s *WorkflowService) projectOrderStatus(ctx context.Context, actor policy.Actor, order *model.Order, task *model.Task, rejected bool) error {
	var next model.OrderStatus
	switch {
	case rejected && task.Type == s.pipeline.QCTaskType(order.Method):
		next = model.OrderStatusQCFailed
	case !rejected && task.Type == s.pipeline.TerminalTaskType(order.Method):
		next = model.OrderStatusReadyForDelivery
	case !rejected && task.Type == s.pipeline.QCTaskType(order.Method):
		next = model.OrderStatusQCPassed
	default:
		return nil
	}
	if order.Status == next {
		return nil
	}

	before := *order
	order.Status = next
	order.UpdatedAt = time.Now().UTC()
	if err := s.orders.Save(ctx, order); err != nil {
		return apperr.Internal(fmt.Sprintf("failed to save order status: %v", err))
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     "order.status_projected",
		EntityType: "order",
		EntityID:   order.ID,
		Before:     &before,
		After:      order,
		ActorID:    actor.ID,
	})
	s.appendLog(ctx, actor.ID, "order", order.ID, "status", string(next))
	return nil
}

// TransitionTo routes a raw status value through the action state machine,
// used by the sync applier so a replicated status write obeys the same
// transition rules as a direct action.
func (s *WorkflowService) TransitionTo(ctx context.Context, actor policy.Actor, taskID string, target model.TaskStatus, reason string) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status == target {
		return nil
	}

	req := &model.TaskActionRequest{Reason: reason}
	switch target {
	case model.TaskStatusInProgress:
		req.Action = model.TaskActionStart
	case model.TaskStatusCompleted:
		req.Action = model.TaskActionComplete
	case model.TaskStatusRejected:
		req.Action = model.TaskActionReject
		if req.Reason == "" {
			req.Reason = task.RejectReason
		}
	case model.TaskStatusOnHold:
		req.Action = model.TaskActionHold
	case model.TaskStatusPending:
		req.Action = model.TaskActionReassign
		req.AssigneeID = task.AssigneeID
	default:
		return apperr.Validation(apperr.CodeInvalidAction, fmt.Sprintf("unknown task status %q", target), nil)
	}

	_, err = s.Act(ctx, actor, taskID, req)
	return err
}

// EnterProduction creates the method's PENDING task pipeline for an order
// and moves the order into production.
func (s *WorkflowService) EnterProduction(ctx context.Context, actor policy.Actor, orderID string) ([]*model.Task, error) {
	if err := policy.Evaluate(actor, policy.ActionTaskCreate, policy.Resource{Type: "order", ID: orderID}); err != nil {
		return nil, err
	}

	order, err := s.orders.Get(ctx, orderID)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound(apperr.CodeOrderNotFound, fmt.Sprintf("order %s not found", orderID))
	}
	if err != nil {
		return nil, err
	}

	existing, err := s.tasks.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apperr.StateConflict(apperr.CodeInvalidTransition,
			fmt.Sprintf("order %s already has production tasks", orderID), nil)
	}

	now := time.Now().UTC()
	var created []*model.Task
	for _, taskType := range s.pipeline.TaskTypes(order.Method) {
		task := &model.Task{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			Type:      taskType,
			Status:    model.TaskStatusPending,
			Quantity:  order.TotalQty,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.tasks.Save(ctx, task); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("failed to create task: %v", err))
		}
		s.audit.Record(ctx, audit.Entry{
			Action:     "task.created",
			EntityType: "task",
			EntityID:   task.ID,
			After:      task,
			ActorID:    actor.ID,
		})
		created = append(created, task)
	}

	before := *order
	order.Status = model.OrderStatusInProduction
	order.UpdatedAt = now
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("failed to save order: %v", err))
	}
	s.audit.Record(ctx, audit.Entry{
		Action:     "order.entered_production",
		EntityType: "order",
		EntityID:   order.ID,
		Before:     &before,
		After:      order,
		ActorID:    actor.ID,
	})
	s.appendLog(ctx, actor.ID, "order", order.ID, "status", string(order.Status))

	return created, nil
}

// RecomputeOrderStatus derives the order status from scratch out of task
// state. Used by the consistency check worker to catch projection drift; it
// never writes, only reports.
func (s *WorkflowService) RecomputeOrderStatus(ctx context.Context, orderID string) (model.OrderStatus, model.OrderStatus, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err == repository.ErrNotFound {
		return "", "", apperr.NotFound(apperr.CodeOrderNotFound, fmt.Sprintf("order %s not found", orderID))
	}
	if err != nil {
		return "", "", err
	}

	tasks, err := s.tasks.ListByOrder(ctx, orderID)
	if err != nil {
		return "", "", err
	}

	qcType := s.pipeline.QCTaskType(order.Method)
	terminalType := s.pipeline.TerminalTaskType(order.Method)

	derived := order.Status
	switch {
	case hasTaskInStatus(tasks, terminalType, model.TaskStatusCompleted):
		derived = model.OrderStatusReadyForDelivery
	case hasTaskInStatus(tasks, qcType, model.TaskStatusRejected):
		derived = model.OrderStatusQCFailed
	case hasTaskInStatus(tasks, qcType, model.TaskStatusCompleted):
		derived = model.OrderStatusQCPassed
	case len(tasks) > 0 && order.Status.ProjectionCandidate():
		derived = model.OrderStatusInProduction
	}

	return order.Status, derived, nil
}

func hasTaskInStatus(tasks []*model.Task, taskType model.TaskType, status model.TaskStatus) bool {
	for _, t := range tasks {
		if t.Type == taskType && t.Status == status {
			return true
		}
	}
	return false
}

func (s *WorkflowService) appendLog(ctx context.Context, actorID, entityType, entityID, field, value string) {
	entry := &model.MutationLogEntry{
		ID:          uuid.New().String(),
		EntityType:  entityType,
		EntityID:    entityID,
		Operation:   model.SyncOpUpdate,
		Field:       field,
		Value:       value,
		ActorID:     actorID,
		CommittedAt: time.Now().UTC(),
	}
	if err := s.log.Append(ctx, entry); err != nil {
		// A log append failure must not roll back the committed mutation.
		log.Printf("mutation log append failed for %s %s: %v", entityType, entityID, err)
	}
}
