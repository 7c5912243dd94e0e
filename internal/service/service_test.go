package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stitchworks/api/internal/audit"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/policy"
	"github.com/stitchworks/api/internal/repository"
)

// stubAdvisory stands in for the external risk scorer.
type stubAdvisory struct {
	result *model.AdvisoryResult
	err    error
}

func (s *stubAdvisory) CheckRouteCustomization(context.Context, string, model.Method, []model.RoutingStepRequest) (*model.AdvisoryResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &model.AdvisoryResult{Blocked: false, Risk: "low"}, nil
}

func (s *stubAdvisory) IsConfigured() bool { return true }

type fixture struct {
	orders      *repository.MemoryOrderRepository
	steps       *repository.MemoryRoutingStepRepository
	tasks       *repository.MemoryTaskRepository
	conflicts   *repository.MemoryConflictRepository
	mutationLog *repository.MemoryMutationLogRepository
	templates   *repository.MemoryTemplateRepository
	recorder    *audit.MemoryRecorder
	advisory    *stubAdvisory

	routing  *RoutingService
	workflow *WorkflowService
	sync     *SyncService
	resolver *ConflictService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		orders:      repository.NewMemoryOrderRepository(),
		steps:       repository.NewMemoryRoutingStepRepository(),
		tasks:       repository.NewMemoryTaskRepository(),
		conflicts:   repository.NewMemoryConflictRepository(),
		mutationLog: repository.NewMemoryMutationLogRepository(),
		templates:   repository.NewMemoryTemplateRepository(),
		recorder:    audit.NewMemoryRecorder(),
		advisory:    &stubAdvisory{},
	}
	require.NoError(t, repository.SeedTemplates(context.Background(), f.templates))

	pipeline := policy.NewMethodPipeline()
	f.routing = NewRoutingService(f.orders, f.steps, f.templates, f.advisory, f.recorder)
	f.workflow = NewWorkflowService(f.orders, f.tasks, pipeline, f.mutationLog, f.recorder)
	registry := NewApplierRegistry(
		NewTaskApplier(f.tasks, f.workflow, f.mutationLog, f.recorder),
		NewStepApplier(f.steps, f.mutationLog, f.recorder),
	)
	f.resolver = NewConflictService(f.conflicts, registry, f.recorder)
	f.sync = NewSyncService(registry, f.conflicts, f.resolver, f.mutationLog)
	return f
}

var (
	manager  = policy.Actor{ID: "u-mgr", Role: model.RoleManager}
	operator = policy.Actor{ID: "u-op", Role: model.RoleOperator}
)

func (f *fixture) seedOrder(t *testing.T, method model.Method) *model.Order {
	t.Helper()
	now := time.Now().UTC()
	order := &model.Order{
		ID:        uuid.New().String(),
		PONumber:  "PO-1001",
		Status:    model.OrderStatusInProduction,
		Method:    method,
		TotalQty:  500,
		DueDate:   now.AddDate(0, 0, 30),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.orders.Save(context.Background(), order))
	return order
}

func (f *fixture) seedTask(t *testing.T, orderID string, taskType model.TaskType, status model.TaskStatus, assignee string) *model.Task {
	t.Helper()
	now := time.Now().UTC()
	task := &model.Task{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		Type:       taskType,
		AssigneeID: assignee,
		Status:     status,
		Quantity:   100,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if status != model.TaskStatusPending {
		started := now.Add(-time.Hour)
		task.StartedAt = &started
	}
	require.NoError(t, f.tasks.Save(context.Background(), task))
	return task
}

func (f *fixture) seedStep(t *testing.T, orderID, name string, seq int, status model.StepStatus, deps ...string) *model.RoutingStep {
	t.Helper()
	now := time.Now().UTC()
	step := &model.RoutingStep{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		Name:       name,
		Workcenter: "wc-" + name,
		Sequence:   seq,
		DependsOn:  deps,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, f.steps.Save(context.Background(), step))
	return step
}

func (f *fixture) taskByType(t *testing.T, orderID string, taskType model.TaskType) *model.Task {
	t.Helper()
	tasks, err := f.tasks.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	for _, task := range tasks {
		if task.Type == taskType {
			return task
		}
	}
	t.Fatalf("no %s task for order %s", taskType, orderID)
	return nil
}

func stepReq(name, workcenter string, seq int, deps ...string) model.RoutingStepRequest {
	s := seq
	return model.RoutingStepRequest{
		Name:       name,
		Workcenter: workcenter,
		Sequence:   &s,
		DependsOn:  deps,
	}
}
