package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stitchworks/api/internal/apperr"
	"github.com/stitchworks/api/internal/audit"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/policy"
	"github.com/stitchworks/api/internal/repository"
	"github.com/stitchworks/api/internal/routing"
)

// StepApplier adapts routing steps to the sync capability interface.
// Started steps are immutable history; a step may only be deleted while
// PLANNED, and creates are validated against the order's merged graph.
type StepApplier struct {
	steps repository.RoutingStepRepository
	log   repository.MutationLogRepository
	audit audit.Recorder
}

func NewStepApplier(steps repository.RoutingStepRepository, mutationLog repository.MutationLogRepository, recorder audit.Recorder) *StepApplier {
	return &StepApplier{steps: steps, log: mutationLog, audit: recorder}
}

func (a *StepApplier) EntityType() string { return "routing_step" }

func (a *StepApplier) getStep(ctx context.Context, entityID string) (*model.RoutingStep, error) {
	step, err := a.steps.Get(ctx, entityID)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound(apperr.CodeStepNotFound, fmt.Sprintf("routing step %s not found", entityID))
	}
	if err != nil {
		return nil, err
	}
	return step, nil
}

func (a *StepApplier) CurrentValue(ctx context.Context, entityID, field string) (interface{}, error) {
	step, err := a.getStep(ctx, entityID)
	if err != nil {
		return nil, err
	}
	v, _ := fieldValue(step, field)
	return v, nil
}

func (a *StepApplier) ApplyField(ctx context.Context, actor policy.Actor, entityID, field string, value interface{}) error {
	step, err := a.getStep(ctx, entityID)
	if err != nil {
		return err
	}
	if step.Status == model.StepStatusDone {
		return apperr.StateConflict(apperr.CodeInvalidTransition,
			fmt.Sprintf("step %q is done and immutable", step.Name), nil)
	}

	before := *step
	switch field {
	case "workcenter":
		step.Workcenter = asString(value)

	case "can_run_parallel":
		flag, ok := value.(bool)
		if !ok {
			return apperr.Validation(apperr.CodeUnsupportedField, "can_run_parallel must be a boolean", nil)
		}
		step.CanRunParallel = flag

	case "planned_start", "planned_end":
		t, err := parseTimestamp(value)
		if err != nil {
			return apperr.Validation(apperr.CodeUnsupportedField,
				fmt.Sprintf("%s must be an RFC3339 timestamp", field), nil)
		}
		if field == "planned_start" {
			step.PlannedStart = t
		} else {
			step.PlannedEnd = t
		}

	default:
		return apperr.Validation(apperr.CodeUnsupportedField,
			fmt.Sprintf("field %q of a routing step cannot be written through sync", field),
			map[string]interface{}{"field": field})
	}

	step.UpdatedAt = time.Now().UTC()
	if err := a.steps.Save(ctx, step); err != nil {
		return apperr.Internal(fmt.Sprintf("failed to save step: %v", err))
	}
	a.audit.Record(ctx, audit.Entry{
		Action:     "routing_step.field_set",
		EntityType: "routing_step",
		EntityID:   step.ID,
		Before:     &before,
		After:      step,
		ActorID:    actor.ID,
	})
	a.appendLog(ctx, actor.ID, step.ID, model.SyncOpUpdate, field, value)
	return nil
}

// Create adds one planned step. The order's merged graph (current steps plus
// the new one) must still validate, so offline edits cannot smuggle in a
// duplicate sequence or a cycle.
func (a *StepApplier) Create(ctx context.Context, actor policy.Actor, payload map[string]interface{}) (string, error) {
	orderID := asString(payload["order_id"])
	if orderID == "" {
		return "", apperr.Validation(apperr.CodeMissingField, "routing step create requires order_id", nil)
	}

	current, err := a.steps.ListByOrder(ctx, orderID)
	if err != nil {
		return "", err
	}

	merged := make([]model.RoutingStepRequest, 0, len(current)+1)
	for _, s := range current {
		seq := s.Sequence
		merged = append(merged, model.RoutingStepRequest{
			Name:       s.Name,
			Workcenter: s.Workcenter,
			Sequence:   &seq,
			DependsOn:  s.DependsOn,
		})
	}

	req := model.RoutingStepRequest{
		Name:       asString(payload["name"]),
		Workcenter: asString(payload["workcenter"]),
	}
	if seq, ok := asInt(payload["sequence"]); ok {
		req.Sequence = &seq
	}
	if deps, ok := payload["depends_on"].([]interface{}); ok {
		for _, d := range deps {
			req.DependsOn = append(req.DependsOn, asString(d))
		}
	}
	merged = append(merged, req)

	if err := routing.Validate(merged); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	step := &model.RoutingStep{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		Name:       req.Name,
		Workcenter: req.Workcenter,
		Sequence:   *req.Sequence,
		DependsOn:  req.DependsOn,
		Status:     model.StepStatusPlanned,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.steps.Save(ctx, step); err != nil {
		return "", apperr.Internal(fmt.Sprintf("failed to create step: %v", err))
	}
	a.audit.Record(ctx, audit.Entry{
		Action:     "routing_step.created",
		EntityType: "routing_step",
		EntityID:   step.ID,
		After:      step,
		ActorID:    actor.ID,
	})
	a.appendLog(ctx, actor.ID, step.ID, model.SyncOpCreate, "", nil)
	return step.ID, nil
}

func (a *StepApplier) Delete(ctx context.Context, actor policy.Actor, entityID string) error {
	step, err := a.getStep(ctx, entityID)
	if err != nil {
		return err
	}
	if step.Status != model.StepStatusPlanned {
		return apperr.StateConflict(apperr.CodeStepNotDeletable,
			fmt.Sprintf("step %q is %s; only PLANNED steps may be deleted", step.Name, step.Status), nil)
	}
	if err := a.steps.Delete(ctx, step); err != nil {
		return apperr.Internal(fmt.Sprintf("failed to delete step: %v", err))
	}
	a.audit.Record(ctx, audit.Entry{
		Action:     "routing_step.deleted",
		EntityType: "routing_step",
		EntityID:   step.ID,
		Before:     step,
		ActorID:    actor.ID,
	})
	a.appendLog(ctx, actor.ID, step.ID, model.SyncOpDelete, "", nil)
	return nil
}

func (a *StepApplier) appendLog(ctx context.Context, actorID, entityID string, op model.SyncOperation, field string, value interface{}) {
	entry := &model.MutationLogEntry{
		ID:          uuid.New().String(),
		EntityType:  "routing_step",
		EntityID:    entityID,
		Operation:   op,
		Field:       field,
		Value:       value,
		ActorID:     actorID,
		CommittedAt: time.Now().UTC(),
	}
	_ = a.log.Append(ctx, entry)
}

func parseTimestamp(v interface{}) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("not a timestamp string")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
