package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stitchworks/api/internal/apperr"
	"github.com/stitchworks/api/internal/audit"
	"github.com/stitchworks/api/internal/client"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/policy"
	"github.com/stitchworks/api/internal/repository"
	"github.com/stitchworks/api/internal/routing"
)

// RoutingService owns routing graph customization and template
// instantiation. All validation happens before any mutation; the replacement
// itself is a single atomic repository operation.
type RoutingService struct {
	orders    repository.OrderRepository
	steps     repository.RoutingStepRepository
	templates repository.TemplateRepository
	advisory  client.AdvisoryChecker
	audit     audit.Recorder
}

func NewRoutingService(
	orders repository.OrderRepository,
	steps repository.RoutingStepRepository,
	templates repository.TemplateRepository,
	advisory client.AdvisoryChecker,
	recorder audit.Recorder,
) *RoutingService {
	return &RoutingService{
		orders:    orders,
		steps:     steps,
		templates: templates,
		advisory:  advisory,
		audit:     recorder,
	}
}

// GetOrder returns a single order.
func (s *RoutingService) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound(apperr.CodeOrderNotFound, fmt.Sprintf("order %s not found", orderID))
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListSteps returns the order's routing steps in sequence order.
func (s *RoutingService) ListSteps(ctx context.Context, orderID string) ([]*model.RoutingStep, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.steps.ListByOrder(ctx, orderID)
}

// Customize atomically replaces the not-yet-started steps of an order with
// the proposed set, after shape validation and the advisory check.
func (s *RoutingService) Customize(ctx context.Context, actor policy.Actor, orderID string, reqSteps []model.RoutingStepRequest) (*model.RoutingResponse, error) {
	if err := policy.Evaluate(actor, policy.ActionRoutingCustomize, policy.Resource{Type: "order", ID: orderID}); err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return s.replaceSteps(ctx, actor, order, reqSteps, "routing.customize")
}

// ApplyTemplate instantiates a named template against the order's due date
// and performs the same guarded atomic replacement as Customize.
func (s *RoutingService) ApplyTemplate(ctx context.Context, actor policy.Actor, orderID, templateKey string) (*model.RoutingResponse, error) {
	if err := policy.Evaluate(actor, policy.ActionRoutingCustomize, policy.Resource{Type: "order", ID: orderID}); err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	tpl, err := s.templates.Get(ctx, templateKey)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound(apperr.CodeTemplateNotFound, fmt.Sprintf("template %q not found", templateKey))
	}
	if err != nil {
		return nil, err
	}

	reqSteps := instantiateTemplate(tpl, order.DueDate)
	return s.replaceSteps(ctx, actor, order, reqSteps, "routing.apply_template")
}

// instantiateTemplate resolves a template's day offsets against the order
// due date into absolute planned start/end timestamps, sequencing steps in
// template order.
func instantiateTemplate(tpl *model.RouteTemplate, dueDate time.Time) []model.RoutingStepRequest {
	steps := make([]model.RoutingStepRequest, 0, len(tpl.Steps))
	for i, ts := range tpl.Steps {
		seq := i + 1
		start := dueDate.AddDate(0, 0, ts.StartOffsetDays)
		end := dueDate.AddDate(0, 0, ts.EndOffsetDays)
		steps = append(steps, model.RoutingStepRequest{
			Name:           ts.Name,
			Workcenter:     ts.Workcenter,
			Sequence:       &seq,
			DependsOn:      append([]string(nil), ts.DependsOn...),
			JoinType:       ts.JoinType,
			CanRunParallel: ts.CanRunParallel,
			PlannedStart:   &start,
			PlannedEnd:     &end,
		})
	}
	return steps
}

// replaceSteps is the shared guarded replacement behind Customize and
// ApplyTemplate: started-step check, graph validation, advisory verdict,
// then one atomic swap with a before/after audit pair per replaced step.
func (s *RoutingService) replaceSteps(ctx context.Context, actor policy.Actor, order *model.Order, reqSteps []model.RoutingStepRequest, action string) (*model.RoutingResponse, error) {
	current, err := s.steps.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	var started []string
	for _, step := range current {
		if step.Status.IsStarted() {
			started = append(started, step.Name)
		}
	}
	if len(started) > 0 {
		return nil, apperr.StateConflict(apperr.CodeStepsInProgress,
			"routing cannot be customized while steps are in progress or done",
			map[string]interface{}{"steps": started})
	}

	if err := routing.Validate(reqSteps); err != nil {
		return nil, err
	}

	adv, err := s.advisory.CheckRouteCustomization(ctx, order.ID, order.Method, reqSteps)
	if err != nil {
		return nil, apperr.Dependency(apperr.CodeAdvisoryUnavailable,
			fmt.Sprintf("advisory validation service unavailable: %v", err), nil)
	}
	if adv.Blocked {
		return nil, apperr.Dependency(apperr.CodeAdvisoryBlocked,
			"advisory validation service blocked the customization",
			map[string]interface{}{"risk": adv.Risk, "issues": adv.Issues, "warnings": adv.Warnings})
	}

	now := time.Now().UTC()
	newSteps := make([]*model.RoutingStep, 0, len(reqSteps))
	for _, rs := range reqSteps {
		newSteps = append(newSteps, &model.RoutingStep{
			ID:             uuid.New().String(),
			OrderID:        order.ID,
			Name:           rs.Name,
			Workcenter:     rs.Workcenter,
			Sequence:       *rs.Sequence,
			DependsOn:      append([]string(nil), rs.DependsOn...),
			JoinType:       rs.JoinType,
			CanRunParallel: rs.CanRunParallel,
			Status:         model.StepStatusPlanned,
			PlannedStart:   rs.PlannedStart,
			PlannedEnd:     rs.PlannedEnd,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	// Only not-started steps are rewritten; started steps already failed the
	// guard above, so under the precondition this is all of them.
	var remove []*model.RoutingStep
	for _, step := range current {
		if !step.Status.IsStarted() {
			remove = append(remove, step)
		}
	}

	if err := s.steps.ReplaceForOrder(ctx, order.ID, remove, newSteps); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("failed to replace routing steps: %v", err))
	}

	oldByName := make(map[string]*model.RoutingStep, len(remove))
	for _, step := range remove {
		oldByName[step.Name] = step
	}
	for _, step := range newSteps {
		before := oldByName[step.Name]
		delete(oldByName, step.Name)
		s.audit.Record(ctx, audit.Entry{
			Action:     action,
			EntityType: "routing_step",
			EntityID:   step.ID,
			Before:     before,
			After:      step,
			ActorID:    actor.ID,
		})
	}
	for _, step := range oldByName {
		s.audit.Record(ctx, audit.Entry{
			Action:     action,
			EntityType: "routing_step",
			EntityID:   step.ID,
			Before:     step,
			ActorID:    actor.ID,
		})
	}

	return &model.RoutingResponse{
		OrderID:  order.ID,
		Steps:    newSteps,
		Advisory: adv,
	}, nil
}
